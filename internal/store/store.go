package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/listarchive/internal/model"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// EmailNode is the part of an email needed to compute thread structure.
type EmailNode struct {
	ID          int64     `db:"id"`
	ParentID    *int64    `db:"parent_id"`
	Date        time.Time `db:"date"`
	ThreadOrder *int      `db:"thread_order"`
	ThreadDepth int       `db:"thread_depth"`
}

// Position is a computed thread_order and thread_depth for an email.
type Position struct {
	EmailID int64
	Order   int
	Depth   int
}

// PosterCount is the number of emails a sender posted under one name.
type PosterCount struct {
	Address string `db:"address" json:"address"`
	Name    string `db:"sender_name" json:"name"`
	Count   int    `db:"count" json:"count"`
}

// ThreadCount pairs a thread with a computed number (emails or votes).
type ThreadCount struct {
	ThreadID   int64     `db:"thread_id"`
	Count      int       `db:"count"`
	DateActive time.Time `db:"date_active"`
}

// IndexAction tells the indexer whether to add or drop an email.
type IndexAction string

const (
	IndexUpdate IndexAction = "update"
	IndexRemove IndexAction = "remove"
)

// IndexEntry is an email waiting to be sent to the full-text index.
type IndexEntry struct {
	EmailID  int64       `db:"email_id"`
	ListName string      `db:"list_name"`
	Action   IndexAction `db:"action"`
	QueuedAt time.Time   `db:"queued_at"`
}

// Querier holds every read and write the archive performs. It is
// implemented on top of both the database handle and open transactions.
type Querier interface {
	// === Mailing lists ===

	GetOrCreateMailingList(ctx context.Context, name string) (*model.MailingList, bool, error)
	GetMailingList(ctx context.Context, name string) (*model.MailingList, error)
	GetMailingListByID(ctx context.Context, id int64) (*model.MailingList, error)
	GetMailingLists(ctx context.Context) ([]model.MailingList, error)
	UpdateMailingListMetadata(ctx context.Context, name string, meta model.ListMetadata) error
	DeleteMailingList(ctx context.Context, name string) error

	// === Senders ===

	GetOrCreateSender(ctx context.Context, address string) (*model.Sender, error)
	GetSender(ctx context.Context, id int64) (*model.Sender, error)
	SetSenderMailmanID(ctx context.Context, id int64, mailmanID string) error
	GetSenders(ctx context.Context, afterID int64, limit int, unlinkedOnly bool) ([]model.Sender, error)

	// === Threads ===

	CreateThread(ctx context.Context, t *model.Thread) error
	GetThread(ctx context.Context, id int64) (*model.Thread, error)
	GetThreadByThreadID(ctx context.Context, listID int64, threadID string) (*model.Thread, error)
	UpdateThread(ctx context.Context, t model.Thread) error
	DeleteThread(ctx context.Context, id int64) error
	CountThreadEmails(ctx context.Context, threadID int64) (int, error)
	LatestEmailDate(ctx context.Context, threadID int64) (time.Time, error)
	ThreadIDsBetween(ctx context.Context, listID int64, begin, end time.Time) ([]int64, error)
	GetThreadIDs(ctx context.Context, listID int64) ([]int64, error)

	// === Emails ===

	InsertEmail(ctx context.Context, e *model.Email) error
	GetEmail(ctx context.Context, id int64) (*model.Email, error)
	GetEmailByMessageID(ctx context.Context, listID int64, messageID string) (*model.Email, error)
	GetEmailByHash(ctx context.Context, listID int64, hash string) (*model.Email, error)
	EmailExists(ctx context.Context, listID int64, messageID string) (bool, error)
	GetThreadNodes(ctx context.Context, threadID int64) ([]EmailNode, error)
	GetThreadEmails(ctx context.Context, threadID int64) ([]model.Email, error)
	SetEmailParent(ctx context.Context, id int64, parentID *int64) error
	MoveEmailsToThread(ctx context.Context, ids []int64, threadID int64) error
	SetEmailPositions(ctx context.Context, positions []Position) error
	GetEmailIDs(ctx context.Context, listID int64) ([]int64, error)
	FindOrphans(ctx context.Context, listID int64, messageID string, excludeID int64) ([]int64, error)
	DeleteEmail(ctx context.Context, id int64) error

	// === Attachments ===

	AttachmentExists(ctx context.Context, emailID int64, counter int) (bool, error)
	InsertAttachment(ctx context.Context, a *model.Attachment) error
	GetAttachments(ctx context.Context, emailID int64) ([]model.Attachment, error)

	// === Votes, favorites, categories ===

	GetVote(ctx context.Context, emailID int64, userID string) (*model.Vote, error)
	UpsertVote(ctx context.Context, emailID int64, userID string, value int) error
	DeleteVote(ctx context.Context, emailID int64, userID string) error
	CountEmailVotes(ctx context.Context, emailID int64) (likes, dislikes int, err error)
	CountThreadVotes(ctx context.Context, threadID int64) (likes, dislikes int, err error)
	AddFavorite(ctx context.Context, threadID int64, userID string) error
	RemoveFavorite(ctx context.Context, threadID int64, userID string) error
	GetFavorites(ctx context.Context, userID string) ([]model.Favorite, error)
	GetOrCreateCategory(ctx context.Context, name string) (*model.ThreadCategory, error)

	// === Aggregates ===

	CountParticipantsBetween(ctx context.Context, listID int64, begin, end time.Time) (int, error)
	CountPostersBetween(ctx context.Context, listID int64, begin, end time.Time) ([]PosterCount, error)
	CountThreadParticipants(ctx context.Context, threadID int64) (int, error)
	CountEmailsPerThread(ctx context.Context, threadIDs []int64) ([]ThreadCount, error)
	SumVotesPerThread(ctx context.Context, threadIDs []int64) ([]ThreadCount, error)
	FirstEmailDate(ctx context.Context, listID int64) (*time.Time, error)

	// === Leases ===

	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error

	// === Index queue ===

	EnqueueIndex(ctx context.Context, entries []IndexEntry) error
	GetPendingIndex(ctx context.Context, limit int) ([]IndexEntry, error)
	ClearIndex(ctx context.Context, emailIDs []int64) error
}

// Store is the archive persistence layer.
type Store interface {
	Querier

	// InTx runs fn inside a transaction, committing when fn returns nil.
	// fn must use the Querier it is given, never the Store itself.
	InTx(ctx context.Context, fn func(q Querier) error) error

	Close() error
}
