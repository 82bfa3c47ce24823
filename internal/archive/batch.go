package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
)

// Batch ingests many messages with the per-message follow-up work
// deferred: orphans, thread positions and cached values are handled once
// in Finish.
type Batch struct {
	a       *Archiver
	emails  []int64
	threads map[int64]struct{}
	lists   map[int64]struct{}
	months  map[events.Month]struct{}
}

// BatchReport summarizes a finished batch.
type BatchReport struct {
	Emails  int
	Threads int
	Lists   int
}

// BeginBatch starts a bulk import.
func (a *Archiver) BeginBatch() *Batch {
	return &Batch{
		a:       a,
		threads: make(map[int64]struct{}),
		lists:   make(map[int64]struct{}),
		months:  make(map[events.Month]struct{}),
	}
}

// Ingest archives one message like Archiver.Ingest, without scheduling
// anything.
func (b *Batch) Ingest(ctx context.Context, listName string, msg *model.NormalizedMessage) (string, error) {
	res, err := b.a.ingest(ctx, listName, msg, true)
	if err != nil {
		return "", err
	}
	b.emails = append(b.emails, res.email.ID)
	b.threads[res.email.ThreadID] = struct{}{}
	b.lists[res.list.ID] = struct{}{}
	b.months[events.MonthOf(res.list.ID, res.email.Date)] = struct{}{}
	b.a.publishIngest(res, true)
	return res.email.MessageIDHash, nil
}

// Finish attaches the orphans of the batch emails, recomputes each
// impacted thread once and publishes BatchCompleted.
func (b *Batch) Finish(ctx context.Context) (BatchReport, error) {
	var errs []error
	for _, id := range b.emails {
		touched, err := b.a.checkOrphans(ctx, id, true)
		if err != nil {
			errs = append(errs, err)
		}
		for _, t := range touched {
			b.threads[t] = struct{}{}
		}
	}

	threads := sortedKeys(b.threads)
	for _, id := range threads {
		if err := b.a.Recompute(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	// Threads emptied by orphan moves are gone.
	live := threads[:0]
	for _, id := range threads {
		if _, err := b.a.store.GetThread(ctx, id); errors.Is(err, store.ErrNotFound) {
			continue
		}
		live = append(live, id)
	}

	months := make([]events.Month, 0, len(b.months))
	for m := range b.months {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool {
		a, c := months[i], months[j]
		if a.ListID != c.ListID {
			return a.ListID < c.ListID
		}
		if a.Year != c.Year {
			return a.Year < c.Year
		}
		return a.Month < c.Month
	})

	lists := sortedKeys(b.lists)
	b.a.bus.Emit(events.Event{
		Type:    events.EvBatchCompleted,
		Lists:   lists,
		Threads: live,
		Months:  months,
		Batch:   true,
	})

	report := BatchReport{Emails: len(b.emails), Threads: len(live), Lists: len(lists)}
	if err := errors.Join(errs...); err != nil {
		return report, fmt.Errorf("finishing batch: %w", err)
	}
	return report, nil
}

func sortedKeys(m map[int64]struct{}) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
