package model

import (
	"fmt"
	"strings"
	"time"
)

// ArchivePolicy controls whether and how a mailing list is archived.
type ArchivePolicy int

// Archive policies, in the order they are stored.
const (
	ArchivePolicyNever ArchivePolicy = iota
	ArchivePolicyPrivate
	ArchivePolicyPublic
)

// String returns the lowercase policy name.
func (p ArchivePolicy) String() string {
	switch p {
	case ArchivePolicyNever:
		return "never"
	case ArchivePolicyPrivate:
		return "private"
	case ArchivePolicyPublic:
		return "public"
	}
	return fmt.Sprintf("ArchivePolicy(%d)", int(p))
}

// ParseArchivePolicy converts a policy name to an ArchivePolicy.
func ParseArchivePolicy(s string) (ArchivePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never":
		return ArchivePolicyNever, nil
	case "private":
		return ArchivePolicyPrivate, nil
	case "public", "":
		return ArchivePolicyPublic, nil
	}
	return 0, fmt.Errorf("unknown archive policy %q", s)
}

// MailingList is an archived list, identified by its posting address.
type MailingList struct {
	ID            int64         `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	ListID        string        `json:"list_id" db:"list_id"`
	DisplayName   string        `json:"display_name" db:"display_name"`
	Description   string        `json:"description" db:"description"`
	SubjectPrefix string        `json:"subject_prefix" db:"subject_prefix"`
	ArchivePolicy ArchivePolicy `json:"archive_policy" db:"archive_policy"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// DefaultListID derives the RFC 2919 list id from a posting address.
func DefaultListID(name string) string {
	return strings.ReplaceAll(name, "@", ".")
}

// IsPrivate reports whether the archive is restricted to subscribers.
func (l MailingList) IsPrivate() bool {
	return l.ArchivePolicy == ArchivePolicyPrivate
}

// StrippedSubject removes the list's subject prefix from subject.
func (l MailingList) StrippedSubject(subject string) string {
	if subject == "" {
		return "(no subject)"
	}
	if l.SubjectPrefix == "" {
		return subject
	}
	n := len(l.SubjectPrefix)
	if len(subject) >= n && strings.EqualFold(subject[:n], l.SubjectPrefix) {
		return subject[n:]
	}
	return subject
}

// ListMetadata is the list information published by the list directory.
type ListMetadata struct {
	ListID        string
	DisplayName   string
	Description   string
	SubjectPrefix string
	ArchivePolicy ArchivePolicy
	CreatedAt     time.Time
}

// Sender is the identity behind the From address of archived emails.
type Sender struct {
	ID        int64   `json:"id" db:"id"`
	Address   string  `json:"address" db:"address"`
	MailmanID *string `json:"mailman_id,omitempty" db:"mailman_id"`
}
