package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/log"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
	"github.com/nhle/listarchive/internal/tasks"
)

// LockName is the lease held while the queue is being drained.
const LockName = "index_update"

// Dispatcher queues index changes as archive events arrive and sends them
// to the indexer when Update runs.
type Dispatcher struct {
	store     store.Querier
	indexer   Indexer
	lockTTL   time.Duration
	batchSize int
	logger    log.Logger
}

// NewDispatcher creates a dispatcher over the index queue of s.
func NewDispatcher(s store.Querier, indexer Indexer, cfg model.IndexConfig) *Dispatcher {
	d := &Dispatcher{
		store:     s,
		indexer:   indexer,
		lockTTL:   time.Duration(cfg.LockTTLSec) * time.Second,
		batchSize: cfg.BatchSize,
		logger:    log.NewLogger("index"),
	}
	if d.batchSize <= 0 {
		d.batchSize = 500
	}
	if d.lockTTL <= 0 {
		d.lockTTL = time.Hour
	}
	return d
}

// Subscribe registers the dispatcher on bus.
func (d *Dispatcher) Subscribe(bus *events.Bus) {
	bus.Subscribe(d, events.EvEmailAdded, events.EvEmailDeleted, events.EvEmailReparented)
}

func (d *Dispatcher) Closed() bool { return false }

// Receive implements events.Subscriber.
func (d *Dispatcher) Receive(ev events.Event) {
	ctx := context.Background()
	entry := store.IndexEntry{EmailID: ev.EmailID, ListName: ev.ListName}
	switch ev.Type {
	case events.EvEmailAdded:
		entry.Action = store.IndexUpdate
	case events.EvEmailDeleted:
		entry.Action = store.IndexRemove
	case events.EvEmailReparented:
		if err := d.requeueThread(ctx, ev); err != nil {
			d.logger.Warnf("queueing thread %d for indexing: %v", ev.ThreadID, err)
		}
		return
	default:
		return
	}
	if err := d.store.EnqueueIndex(ctx, []store.IndexEntry{entry}); err != nil {
		d.logger.Warnf("queueing email %d for indexing: %v", ev.EmailID, err)
	}
}

// requeueThread queues every email of the thread a subtree was moved to,
// since their documents carry the thread id.
func (d *Dispatcher) requeueThread(ctx context.Context, ev events.Event) error {
	listName := ev.ListName
	if listName == "" {
		list, err := d.store.GetMailingListByID(ctx, ev.ListID)
		if err != nil {
			return err
		}
		listName = list.Name
	}
	emails, err := d.store.GetThreadEmails(ctx, ev.ThreadID)
	if err != nil {
		return err
	}
	entries := make([]store.IndexEntry, len(emails))
	for i, e := range emails {
		entries[i] = store.IndexEntry{EmailID: e.ID, ListName: listName, Action: store.IndexUpdate}
	}
	return d.store.EnqueueIndex(ctx, entries)
}

// Reindex queues every email of a list.
func (d *Dispatcher) Reindex(ctx context.Context, listName string) (int, error) {
	list, err := d.store.GetMailingList(ctx, listName)
	if err != nil {
		return 0, err
	}
	ids, err := d.store.GetEmailIDs(ctx, list.ID)
	if err != nil {
		return 0, err
	}
	entries := make([]store.IndexEntry, len(ids))
	for i, id := range ids {
		entries[i] = store.IndexEntry{EmailID: id, ListName: listName, Action: store.IndexUpdate}
	}
	if err := d.store.EnqueueIndex(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Update drains the queue into the indexer. It does nothing when another
// process is already updating. Entries whose batch fails stay queued for
// the next run.
func (d *Dispatcher) Update(ctx context.Context) (int, error) {
	done := 0
	ran, err := tasks.RunWithLock(ctx, d.store, LockName, d.lockTTL, func(ctx context.Context) error {
		for {
			entries, err := d.store.GetPendingIndex(ctx, d.batchSize)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return nil
			}
			if err := d.flush(ctx, entries); err != nil {
				return err
			}
			done += len(entries)
			if len(entries) < d.batchSize {
				return nil
			}
		}
	})
	if err != nil {
		return done, fmt.Errorf("updating index: %w", err)
	}
	if ran && done > 0 {
		d.logger.Infof("indexed %d changes", done)
	}
	return done, nil
}

func (d *Dispatcher) flush(ctx context.Context, entries []store.IndexEntry) error {
	var docs []Document
	removed := make(map[string][]int64)
	ids := make([]int64, 0, len(entries))

	for _, e := range entries {
		ids = append(ids, e.EmailID)
		if e.Action == store.IndexRemove {
			removed[e.ListName] = append(removed[e.ListName], e.EmailID)
			continue
		}
		doc, err := d.document(ctx, e)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted since it was queued.
			removed[e.ListName] = append(removed[e.ListName], e.EmailID)
			continue
		}
		if err != nil {
			return err
		}
		docs = append(docs, *doc)
	}

	if len(docs) > 0 {
		if err := d.indexer.Update(ctx, docs); err != nil {
			return err
		}
	}
	for listName, emailIDs := range removed {
		if err := d.indexer.Remove(ctx, listName, emailIDs); err != nil {
			return err
		}
	}
	return d.store.ClearIndex(ctx, ids)
}

func (d *Dispatcher) document(ctx context.Context, e store.IndexEntry) (*Document, error) {
	email, err := d.store.GetEmail(ctx, e.EmailID)
	if err != nil {
		return nil, err
	}
	sender, err := d.store.GetSender(ctx, email.SenderID)
	if err != nil {
		return nil, err
	}
	return &Document{
		ListName:      e.ListName,
		EmailID:       email.ID,
		MessageIDHash: email.MessageIDHash,
		ThreadID:      email.ThreadID,
		Sender:        sender.Address,
		SenderName:    email.SenderName,
		Subject:       email.Subject,
		Date:          email.Date,
		Content:       email.Content,
	}, nil
}
