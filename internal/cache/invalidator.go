package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/log"
	"github.com/nhle/listarchive/internal/store"
	"github.com/nhle/listarchive/internal/tasks"
)

// Scope selects what a rebuild task refreshes.
type Scope string

const (
	ScopeListRecent   Scope = "list_recent"
	ScopeListMonth    Scope = "list_month"
	ScopeListPopular  Scope = "list_popular"
	ScopeThreadEmails Scope = "thread_emails"
	ScopeThreadVotes  Scope = "thread_votes"
	ScopeEmailVotes   Scope = "email_votes"
)

// RebuildPayload is the payload of tasks.KindRebuildCache.
type RebuildPayload struct {
	Scope Scope
	ID    int64
	Year  int
	Month int
}

// Scheduler queues deferred work. *tasks.Queue implements it.
type Scheduler interface {
	Schedule(ctx context.Context, kind tasks.Kind, payload any) error
}

// Invalidator keeps cached values in step with archive events. Values are
// rebuilt, never deleted, so readers always find something.
type Invalidator struct {
	stats  *Stats
	tasks  Scheduler
	logger log.Logger
}

// NewInvalidator creates an invalidator scheduling rebuilds on q.
func NewInvalidator(stats *Stats, q Scheduler) *Invalidator {
	return &Invalidator{stats: stats, tasks: q, logger: log.NewLogger("cache")}
}

// Subscribe registers the invalidator on bus.
func (inv *Invalidator) Subscribe(bus *events.Bus) {
	bus.Subscribe(inv,
		events.EvEmailAdded,
		events.EvThreadAdded,
		events.EvEmailDeleted,
		events.EvThreadDeleted,
		events.EvEmailReparented,
		events.EvVoteChanged,
		events.EvBatchCompleted,
	)
}

func (inv *Invalidator) Closed() bool { return false }

// Receive implements events.Subscriber.
func (inv *Invalidator) Receive(ev events.Event) {
	ctx := context.Background()

	switch ev.Type {
	case events.EvThreadAdded:
		if ev.Batch {
			return
		}
		if err := inv.stats.AddRecentThread(ctx, ev.ListID, ev.ThreadID); err != nil {
			inv.logger.Warnf("adding thread %d to recent threads: %v", ev.ThreadID, err)
		}

	case events.EvEmailAdded:
		if ev.Batch {
			return
		}
		inv.schedule(ctx, RebuildPayload{Scope: ScopeThreadEmails, ID: ev.ThreadID})
		inv.schedule(ctx, RebuildPayload{Scope: ScopeListRecent, ID: ev.ListID})
		inv.scheduleMonth(ctx, ev.ListID, ev.Date)

	case events.EvEmailDeleted, events.EvThreadDeleted:
		if ev.Type == events.EvEmailDeleted {
			// The email's votes went with it.
			inv.schedule(ctx, RebuildPayload{Scope: ScopeEmailVotes, ID: ev.EmailID})
			if ev.ThreadID != 0 {
				inv.schedule(ctx, RebuildPayload{Scope: ScopeThreadEmails, ID: ev.ThreadID})
				inv.schedule(ctx, RebuildPayload{Scope: ScopeThreadVotes, ID: ev.ThreadID})
			}
		}
		inv.schedule(ctx, RebuildPayload{Scope: ScopeListPopular, ID: ev.ListID})
		if inv.stats.InRecentWindow(ev.Date) {
			inv.schedule(ctx, RebuildPayload{Scope: ScopeListRecent, ID: ev.ListID})
		}
		inv.scheduleMonth(ctx, ev.ListID, ev.Date)

	case events.EvEmailReparented:
		inv.schedule(ctx, RebuildPayload{Scope: ScopeThreadEmails, ID: ev.ThreadID})
		if ev.FromThreadID != 0 && ev.FromThreadID != ev.ThreadID {
			// The subtree took its votes to the target thread.
			inv.schedule(ctx, RebuildPayload{Scope: ScopeThreadEmails, ID: ev.FromThreadID})
			inv.schedule(ctx, RebuildPayload{Scope: ScopeThreadVotes, ID: ev.ThreadID})
			inv.schedule(ctx, RebuildPayload{Scope: ScopeThreadVotes, ID: ev.FromThreadID})
			inv.schedule(ctx, RebuildPayload{Scope: ScopeListPopular, ID: ev.ListID})
			inv.schedule(ctx, RebuildPayload{Scope: ScopeListRecent, ID: ev.ListID})
		}

	case events.EvVoteChanged:
		inv.schedule(ctx, RebuildPayload{Scope: ScopeEmailVotes, ID: ev.EmailID})
		inv.schedule(ctx, RebuildPayload{Scope: ScopeThreadVotes, ID: ev.ThreadID})
		inv.schedule(ctx, RebuildPayload{Scope: ScopeListPopular, ID: ev.ListID})

	case events.EvBatchCompleted:
		// Synchronous: the import reports completion only once the
		// cache reflects it.
		if err := inv.RebuildBatch(ctx, ev); err != nil {
			inv.logger.Errorf("rebuilding cache after import: %v", err)
		}
	}
}

func (inv *Invalidator) scheduleMonth(ctx context.Context, listID int64, date time.Time) {
	m := events.MonthOf(listID, date)
	inv.schedule(ctx, RebuildPayload{Scope: ScopeListMonth, ID: listID, Year: m.Year, Month: int(m.Month)})
}

func (inv *Invalidator) schedule(ctx context.Context, p RebuildPayload) {
	if err := inv.tasks.Schedule(ctx, tasks.KindRebuildCache, p); err != nil {
		inv.logger.Warnf("scheduling %s rebuild of %d: %v", p.Scope, p.ID, err)
	}
}

// RebuildBatch refreshes everything a bulk import touched.
func (inv *Invalidator) RebuildBatch(ctx context.Context, ev events.Event) error {
	var errs []error
	for _, id := range ev.Threads {
		if err := inv.rebuildThread(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range ev.Lists {
		if err := inv.stats.RebuildRecent(ctx, id); err != nil {
			errs = append(errs, err)
		}
		if _, err := inv.stats.PopularThreads(id).Rebuild(ctx); err != nil {
			errs = append(errs, err)
		}
		if _, err := inv.stats.FirstDate(id).Rebuild(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range ev.Months {
		if _, err := inv.stats.ParticipantsCountForMonth(m.ListID, m.Year, m.Month).Rebuild(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (inv *Invalidator) rebuildThread(ctx context.Context, threadID int64) error {
	if ok, err := inv.threadExists(ctx, threadID); !ok {
		return err
	}
	if err := inv.stats.RebuildThread(ctx, threadID); err != nil {
		return err
	}
	if err := inv.stats.RebuildThreadVotes(ctx, threadID); err != nil {
		return err
	}
	_, err := inv.stats.ThreadSubject(threadID).Rebuild(ctx)
	return err
}

func (inv *Invalidator) rebuildThreadVotes(ctx context.Context, threadID int64) error {
	if ok, err := inv.threadExists(ctx, threadID); !ok {
		return err
	}
	return inv.stats.RebuildThreadVotes(ctx, threadID)
}

// threadExists reports false with a nil error for deleted threads.
func (inv *Invalidator) threadExists(ctx context.Context, threadID int64) (bool, error) {
	_, err := inv.stats.store.GetThread(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		inv.logger.Debugf("thread %d is gone, nothing to rebuild", threadID)
		return false, nil
	}
	return err == nil, err
}

// Handle runs a rebuild task. Register it for tasks.KindRebuildCache.
func (inv *Invalidator) Handle(ctx context.Context, payload any) error {
	p, ok := payload.(RebuildPayload)
	if !ok {
		return fmt.Errorf("unexpected rebuild payload %T", payload)
	}

	switch p.Scope {
	case ScopeListRecent:
		return inv.stats.RebuildRecent(ctx, p.ID)
	case ScopeListMonth:
		_, err := inv.stats.ParticipantsCountForMonth(p.ID, p.Year, time.Month(p.Month)).Rebuild(ctx)
		return err
	case ScopeListPopular:
		_, err := inv.stats.PopularThreads(p.ID).Rebuild(ctx)
		return err
	case ScopeThreadEmails:
		return inv.rebuildThread(ctx, p.ID)
	case ScopeThreadVotes:
		return inv.rebuildThreadVotes(ctx, p.ID)
	case ScopeEmailVotes:
		_, err := inv.stats.EmailVotes(p.ID).Rebuild(ctx)
		return err
	}
	return fmt.Errorf("unknown rebuild scope %q", p.Scope)
}
