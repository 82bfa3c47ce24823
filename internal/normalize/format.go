package normalize

import (
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

var addressRE = regexp.MustCompile(`([\w.+-]+)@([\w.+-]+)`)

// Stored is an archived email as needed to rebuild a message from it.
type Stored struct {
	ListName      string
	SenderAddress string
	SenderName    string
	Subject       string
	Date          time.Time
	Timezone      int
	MessageID     string
	InReplyTo     *string
	Content       string
	Attachments   []StoredAttachment
}

// StoredAttachment is an attachment with its content loaded.
type StoredAttachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// Format writes a multipart/mixed message rebuilt from an archived email.
// The Date header uses the sender's original offset and addresses in the
// body are obfuscated.
func Format(w io.Writer, s Stored) error {
	var h mail.Header

	from := &mail.Address{Address: s.SenderAddress}
	if s.SenderName != "" && s.SenderName != s.SenderAddress {
		from.Name = s.SenderName
	}
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{{Address: s.ListName}})
	h.SetSubject(unfold(s.Subject))
	h.SetDate(s.Date.In(time.FixedZone("", s.Timezone*60)).Truncate(time.Second))
	h.SetMessageID(s.MessageID)
	if s.InReplyTo != nil && *s.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{unfold(*s.InReplyTo)})
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}

	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := mw.CreateSingleInline(th)
	if err != nil {
		return fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(tw, addressRE.ReplaceAllString(s.Content, "$1(a)$2")); err != nil {
		return fmt.Errorf("writing text part: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing text part: %w", err)
	}

	for _, a := range s.Attachments {
		var ah mail.AttachmentHeader
		contentType := a.ContentType
		if _, _, err := mime.ParseMediaType(contentType); err != nil || !strings.Contains(contentType, "/") {
			contentType = "application/octet-stream"
		}
		ah.SetContentType(contentType, nil)
		ah.SetFilename(a.Name)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("creating attachment %s: %w", a.Name, err)
		}
		if _, err := aw.Write(a.Content); err != nil {
			return fmt.Errorf("writing attachment %s: %w", a.Name, err)
		}
		if err := aw.Close(); err != nil {
			return fmt.Errorf("closing attachment %s: %w", a.Name, err)
		}
	}

	return mw.Close()
}
