package events

import "time"

// EventType classifies archive changes.
type EventType int

const (
	EvEmailAdded      EventType = iota // Email stored
	EvEmailDeleted                     // Email removed
	EvThreadAdded                      // Thread created by an incoming root
	EvThreadDeleted                    // Last email of a thread removed
	EvEmailReparented                  // Moderator moved a subtree
	EvVoteChanged                      // Vote set or cleared
	EvBatchCompleted                   // Bulk import finished
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvEmailAdded:
		return "email_added"
	case EvEmailDeleted:
		return "email_deleted"
	case EvThreadAdded:
		return "thread_added"
	case EvThreadDeleted:
		return "thread_deleted"
	case EvEmailReparented:
		return "email_reparented"
	case EvVoteChanged:
		return "vote_changed"
	case EvBatchCompleted:
		return "batch_completed"
	default:
		return "unknown"
	}
}

// Month identifies a calendar month of a list.
type Month struct {
	ListID int64
	Year   int
	Month  time.Month
}

// MonthOf returns the month of t in UTC.
func MonthOf(listID int64, t time.Time) Month {
	t = t.UTC()
	return Month{ListID: listID, Year: t.Year(), Month: t.Month()}
}

// Event is a committed change to the archive. Only the fields relevant to
// Type are set.
type Event struct {
	Type     EventType
	ListName string
	ListID   int64
	EmailID  int64
	ThreadID int64

	// Date is the email date for email events and the last activity for
	// ThreadDeleted.
	Date time.Time

	// ThreadCreated is set on EmailAdded when the email started a thread.
	ThreadCreated bool

	// Batch marks events emitted during a bulk import; per-message
	// follow-up work is deferred to BatchCompleted.
	Batch bool

	// FromThreadID is the source thread of a cross-thread reparenting.
	FromThreadID int64

	// Set on BatchCompleted.
	Lists   []int64
	Threads []int64
	Months  []Month
}
