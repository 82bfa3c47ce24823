// Package normalize turns raw RFC 5322 messages into the canonical form
// the archive stores: unquoted and bounded message ids, a resolved reply
// reference, a sender identity, a UTC date with its original offset, and
// scrubbed content.
package normalize

import (
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/listarchive/internal/model"
)

const maxSubjectLength = 512

// Message is an incoming message as handed over by the delivery layer.
type Message struct {
	Header mail.Header

	// Unixfrom is the mbox "From " envelope line, if any.
	Unixfrom string

	// Content and Attachments are the scrubbed body parts.
	Content     string
	Attachments []model.AttachmentData
}

// Normalize validates msg and extracts the fields stored for an email.
func Normalize(msg *Message) (*model.NormalizedMessage, error) {
	return normalizeAt(msg, time.Now())
}

func normalizeAt(msg *Message, now time.Time) (*model.NormalizedMessage, error) {
	id, err := messageID(msg.Header)
	if err != nil {
		return nil, err
	}
	name, address, err := sender(msg.Header)
	if err != nil {
		return nil, err
	}

	archived := envelopeDate(msg.Unixfrom)

	var date time.Time
	var offset int
	if t, ok := messageDate(msg.Header); ok {
		date, offset = splitDate(t)
	} else if archived != nil {
		date = *archived
	} else {
		date = now.UTC()
	}

	return &model.NormalizedMessage{
		MessageID:      id,
		MessageIDHash:  MessageIDHash(id),
		SenderAddress:  address,
		SenderName:     name,
		Subject:        subject(msg.Header),
		Date:           date,
		TimezoneOffset: offset,
		InReplyTo:      reference(msg.Header),
		ArchivedDate:   archived,
		Content:        msg.Content,
		Attachments:    msg.Attachments,
	}, nil
}

func messageDate(h mail.Header) (time.Time, bool) {
	for _, key := range []string{"Date", "Resent-Date"} {
		if t, ok := parseDate(h.Get(key)); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func subject(h mail.Header) string {
	s, err := h.Subject()
	if err != nil {
		s = h.Get("Subject")
	}
	return truncateRunes(strings.TrimSpace(unfold(s)), maxSubjectLength)
}
