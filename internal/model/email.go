package model

import "time"

// Email is one archived message.
type Email struct {
	ID            int64   `json:"id" db:"id"`
	MailingListID int64   `json:"mailinglist_id" db:"mailinglist_id"`
	MessageID     string  `json:"message_id" db:"message_id"`
	MessageIDHash string  `json:"message_id_hash" db:"message_id_hash"`
	SenderID      int64   `json:"sender_id" db:"sender_id"`
	SenderName    string  `json:"sender_name" db:"sender_name"`
	Subject       string  `json:"subject" db:"subject"`
	Content       string  `json:"content" db:"content"`
	InReplyTo     *string `json:"in_reply_to,omitempty" db:"in_reply_to"`
	ParentID      *int64  `json:"parent_id,omitempty" db:"parent_id"`
	ThreadID      int64   `json:"thread_id" db:"thread_id"`

	// Date is stored in UTC; Timezone keeps the sender's offset in minutes.
	Date         time.Time `json:"date" db:"date"`
	Timezone     int       `json:"timezone" db:"timezone"`
	ArchivedDate time.Time `json:"archived_date" db:"archived_date"`

	// ThreadOrder is nil until the thread positions have been computed.
	ThreadOrder *int `json:"thread_order,omitempty" db:"thread_order"`
	ThreadDepth int  `json:"thread_depth" db:"thread_depth"`
}

// IsRoot reports whether the email starts its thread.
func (e Email) IsRoot() bool {
	return e.ParentID == nil
}

// LocalDate returns the email date in the sender's original offset.
func (e Email) LocalDate() time.Time {
	return e.Date.In(time.FixedZone("", e.Timezone*60))
}

// Attachment is a non-body MIME part of an email.
type Attachment struct {
	ID          int64   `json:"id" db:"id"`
	EmailID     int64   `json:"email_id" db:"email_id"`
	Counter     int     `json:"counter" db:"counter"`
	Name        string  `json:"name" db:"name"`
	ContentType string  `json:"content_type" db:"content_type"`
	Encoding    *string `json:"encoding,omitempty" db:"encoding"`
	Size        int64   `json:"size" db:"size"`

	// Content is nil when attachments live in a folder on disk.
	Content []byte `json:"-" db:"content"`
}

// AttachmentData is an attachment extracted from an incoming message,
// before it has been stored.
type AttachmentData struct {
	Counter     int
	Name        string
	ContentType string
	Encoding    string
	Content     []byte
}

// NormalizedMessage is the canonical form of an incoming message, ready to
// be ingested into a list archive.
type NormalizedMessage struct {
	MessageID      string
	MessageIDHash  string
	SenderAddress  string
	SenderName     string
	Subject        string
	Date           time.Time
	TimezoneOffset int
	InReplyTo      *string
	ArchivedDate   *time.Time
	Content        string
	Attachments    []AttachmentData
}
