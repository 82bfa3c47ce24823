package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nhle/listarchive/internal/model"
)

// attachmentDir returns the folder holding the attachments of an email,
// or "" when attachments are stored in the database.
func (a *Archiver) attachmentDir(listName string, e *model.Email) string {
	if a.folder == "" {
		return ""
	}
	listname, domain, ok := strings.Cut(listName, "@")
	if !ok {
		listname, domain = "none", listName
	}
	h := e.MessageIDHash
	return filepath.Join(
		a.folder, domain, listname,
		h[0:2], h[2:4], h[4:6],
		strconv.FormatInt(e.ID, 10),
	)
}

func (a *Archiver) writeAttachment(dir string, counter int, content []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating attachment folder: %w", err)
	}
	path := filepath.Join(dir, strconv.Itoa(counter))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing attachment %s: %w", path, err)
	}
	return nil
}

// attachmentContent returns the bytes of an attachment, reading them from
// the folder when they are not in the database.
func (a *Archiver) attachmentContent(listName string, e *model.Email, att model.Attachment) ([]byte, error) {
	dir := a.attachmentDir(listName, e)
	if dir == "" || att.Content != nil {
		return att.Content, nil
	}
	content, err := os.ReadFile(filepath.Join(dir, strconv.Itoa(att.Counter)))
	if err != nil {
		return nil, fmt.Errorf("reading attachment %d of email %d: %w", att.Counter, e.ID, err)
	}
	return content, nil
}

func (a *Archiver) removeAttachments(listName string, e *model.Email) {
	dir := a.attachmentDir(listName, e)
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		a.logger.Warnf("removing attachments of email %d: %v", e.ID, err)
	}
}
