package model

import "time"

// Thread groups the emails of one conversation inside a mailing list.
type Thread struct {
	ID            int64     `json:"id" db:"id"`
	MailingListID int64     `json:"mailinglist_id" db:"mailinglist_id"`
	ThreadID      string    `json:"thread_id" db:"thread_id"`
	DateActive    time.Time `json:"date_active" db:"date_active"`
	CategoryID    *int64    `json:"category_id,omitempty" db:"category_id"`

	// StartingEmailID points at the root email once one is known.
	StartingEmailID *int64 `json:"starting_email_id,omitempty" db:"starting_email_id"`
}

// ThreadCategory is a moderator-assigned label for threads.
type ThreadCategory struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Color string `json:"color" db:"color"`
}

// Favorite marks a thread as followed by a user.
type Favorite struct {
	ThreadID  int64     `json:"thread_id" db:"thread_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
