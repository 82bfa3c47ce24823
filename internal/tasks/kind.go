package tasks

// Kind names a type of deferred work.
type Kind string

const (
	// KindRecomputeThread recomputes thread_order and thread_depth of a
	// thread. Payload: ThreadPayload.
	KindRecomputeThread Kind = "recompute_thread"

	// KindCheckOrphans attaches replies that arrived before an email.
	// Payload: EmailPayload.
	KindCheckOrphans Kind = "check_orphans"

	// KindSyncList refreshes list metadata from the list directory.
	// Payload: ListPayload.
	KindSyncList Kind = "sync_list"

	// KindSyncSender links a sender to its directory user. Payload:
	// SenderPayload.
	KindSyncSender Kind = "sync_sender"

	// KindRebuildCache rebuilds one cached aggregate. The payload is
	// defined by the cache package.
	KindRebuildCache Kind = "rebuild_cache"
)

type ThreadPayload struct {
	ThreadID int64
}

type EmailPayload struct {
	EmailID int64
}

type ListPayload struct {
	ListName string
}

type SenderPayload struct {
	SenderID int64
}
