package normalize

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/listarchive/internal/model"
)

// Scrubber splits a parsed message into its displayable text and its
// attachments.
type Scrubber interface {
	Scrub(e *message.Entity) (string, []model.AttachmentData, error)
}

// MIMEScrubber keeps text/plain inline parts as the content and turns
// every other part into an attachment.
type MIMEScrubber struct{}

// Scrub implements Scrubber.
func (MIMEScrubber) Scrub(e *message.Entity) (string, []model.AttachmentData, error) {
	mr := mail.NewReader(e)
	defer mr.Close()

	var (
		texts       []string
		attachments []model.AttachmentData
		counter     int
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
				continue
			}
			return "", nil, fmt.Errorf("reading message part: %w", err)
		}
		counter++

		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, params, _ := h.ContentType()
			if contentType == "" || contentType == "text/plain" {
				texts = append(texts, string(body))
				continue
			}
			attachments = append(attachments, model.AttachmentData{
				Counter:     counter,
				Name:        inlineName(counter, contentType),
				ContentType: contentType,
				Encoding:    params["charset"],
				Content:     body,
			})

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, params, _ := h.ContentType()
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			if filename == "" {
				filename = inlineName(counter, contentType)
			}
			attachments = append(attachments, model.AttachmentData{
				Counter:     counter,
				Name:        filename,
				ContentType: contentType,
				Encoding:    params["charset"],
				Content:     body,
			})
		}
	}

	return strings.Join(texts, "\n\n"), attachments, nil
}

func inlineName(counter int, contentType string) string {
	ext := "bin"
	switch contentType {
	case "text/html":
		ext = "html"
	case "text/x-diff", "text/x-patch":
		ext = "patch"
	}
	return fmt.Sprintf("attachment-%d.%s", counter, ext)
}

// ReadMessage parses a raw message, optionally preceded by an mbox "From "
// line, and scrubs its body with s. A nil scrubber means MIMEScrubber.
func ReadMessage(r io.Reader, s Scrubber) (*Message, error) {
	if s == nil {
		s = MIMEScrubber{}
	}

	br := bufio.NewReader(r)
	var unixfrom string
	if prefix, err := br.Peek(5); err == nil && bytes.Equal(prefix, []byte("From ")) {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading envelope line: %w", err)
		}
		unixfrom = strings.TrimRight(line, "\r\n")
	}

	e, err := message.Read(br)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("parsing message: %w", err)
	}

	content, attachments, err := s.Scrub(e)
	if err != nil {
		return nil, err
	}

	return &Message{
		Header:      mail.Header{Header: e.Header},
		Unixfrom:    unixfrom,
		Content:     content,
		Attachments: attachments,
	}, nil
}
