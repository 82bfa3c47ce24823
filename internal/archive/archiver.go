// Package archive stores incoming list messages into threads and keeps
// the thread structure consistent as replies arrive out of order, are
// moved by moderators, or are deleted.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/listarchive/internal/cache"
	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/log"
	"github.com/nhle/listarchive/internal/store"
	"github.com/nhle/listarchive/internal/tasks"
)

// Scheduler queues deferred work. *tasks.Queue implements it.
type Scheduler interface {
	Schedule(ctx context.Context, kind tasks.Kind, payload any) error
	Register(kind tasks.Kind, h tasks.Handler)
}

// ListSyncer refreshes list and sender data from the list directory.
// Implementations log their failures instead of returning them.
type ListSyncer interface {
	SyncList(ctx context.Context, name string) error
	SyncSender(ctx context.Context, senderID int64) error
}

// Options configures an Archiver.
type Options struct {
	Store  store.Store
	Tasks  Scheduler
	Bus    *events.Bus
	Stats  *cache.Stats
	Syncer ListSyncer

	// AttachmentFolder, when set, receives attachment content instead of
	// the database.
	AttachmentFolder string
}

// Archiver is the entry point for every change to the archive.
type Archiver struct {
	store  store.Store
	tasks  Scheduler
	bus    *events.Bus
	stats  *cache.Stats
	syncer ListSyncer
	folder string
	logger log.Logger
}

// New creates an archiver and registers its task handlers on opts.Tasks
// and its event handlers on opts.Bus.
func New(opts Options) *Archiver {
	a := &Archiver{
		store:  opts.Store,
		tasks:  opts.Tasks,
		bus:    opts.Bus,
		stats:  opts.Stats,
		syncer: opts.Syncer,
		folder: opts.AttachmentFolder,
		logger: log.NewLogger("archive"),
	}
	if a.bus == nil {
		a.bus = events.NewBus()
	}
	if a.stats == nil {
		a.stats = cache.NewStats(cache.NewMemoryBackend(0), a.store, 0)
	}

	a.tasks.Register(tasks.KindRecomputeThread, a.handleRecompute)
	a.tasks.Register(tasks.KindCheckOrphans, a.handleCheckOrphans)
	a.tasks.Register(tasks.KindSyncList, a.handleSyncList)
	a.tasks.Register(tasks.KindSyncSender, a.handleSyncSender)
	a.bus.Subscribe(events.SubscriberFunc(a.onEmailAdded), events.EvEmailAdded)

	return a
}

// Bus returns the bus the archiver publishes on.
func (a *Archiver) Bus() *events.Bus {
	return a.bus
}

// Stats returns the aggregate cache used by the read accessors.
func (a *Archiver) Stats() *cache.Stats {
	return a.stats
}

// onEmailAdded schedules the follow-up work of a new email: positions in
// its thread and replies that arrived before it.
func (a *Archiver) onEmailAdded(ev events.Event) {
	if ev.Batch {
		return
	}
	ctx := context.Background()
	a.schedule(ctx, tasks.KindRecomputeThread, tasks.ThreadPayload{ThreadID: ev.ThreadID})
	a.schedule(ctx, tasks.KindCheckOrphans, tasks.EmailPayload{EmailID: ev.EmailID})
}

func (a *Archiver) schedule(ctx context.Context, kind tasks.Kind, payload any) {
	if err := a.tasks.Schedule(ctx, kind, payload); err != nil {
		a.logger.Warnf("scheduling %s: %v", kind, err)
	}
}

func (a *Archiver) handleRecompute(ctx context.Context, payload any) error {
	p, ok := payload.(tasks.ThreadPayload)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", tasks.KindRecomputeThread, payload)
	}
	return a.Recompute(ctx, p.ThreadID)
}

func (a *Archiver) handleCheckOrphans(ctx context.Context, payload any) error {
	p, ok := payload.(tasks.EmailPayload)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", tasks.KindCheckOrphans, payload)
	}
	return a.CheckOrphans(ctx, p.EmailID)
}

func (a *Archiver) handleSyncList(ctx context.Context, payload any) error {
	p, ok := payload.(tasks.ListPayload)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", tasks.KindSyncList, payload)
	}
	if a.syncer == nil {
		return nil
	}
	return a.syncer.SyncList(ctx, p.ListName)
}

func (a *Archiver) handleSyncSender(ctx context.Context, payload any) error {
	p, ok := payload.(tasks.SenderPayload)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", tasks.KindSyncSender, payload)
	}
	if a.syncer == nil {
		return nil
	}
	return a.syncer.SyncSender(ctx, p.SenderID)
}

// wrapTx maps constraint failures from a transaction to ErrIntegrity.
func wrapTx(err error) error {
	if err == nil {
		return nil
	}
	if store.IsUniqueViolation(err) && !errors.Is(err, ErrIntegrity) {
		return integrity(err)
	}
	return err
}
