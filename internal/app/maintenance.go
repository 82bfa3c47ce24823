package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/listarchive/internal/model"
)

// Lists returns the named lists, or every list when names is empty.
func (a *App) Lists(ctx context.Context, names []string) ([]model.MailingList, error) {
	if len(names) == 0 {
		return a.Store.GetMailingLists(ctx)
	}
	lists := make([]model.MailingList, 0, len(names))
	for _, name := range names {
		l, err := a.Store.GetMailingList(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", name, err)
		}
		lists = append(lists, *l)
	}
	return lists, nil
}

// RecomputeAll recomputes the positions of every thread of the lists and
// returns how many threads it went through.
func (a *App) RecomputeAll(ctx context.Context, names []string) (int, error) {
	lists, err := a.Lists(ctx, names)
	if err != nil {
		return 0, err
	}
	var done int
	var errs []error
	for _, l := range lists {
		ids, err := a.Store.GetThreadIDs(ctx, l.ID)
		if err != nil {
			return done, err
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return done, err
			}
			if err := a.Archive.Recompute(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("thread %d: %w", id, err))
				continue
			}
			done++
		}
		a.logger.Infof("recomputed %d threads of %s", len(ids), l.Name)
	}
	return done, errors.Join(errs...)
}

// WarmUp fills the aggregate cache for the lists, including the monthly
// values of the previous months.
func (a *App) WarmUp(ctx context.Context, names []string, months int) error {
	lists, err := a.Lists(ctx, names)
	if err != nil {
		return err
	}
	var errs []error
	for _, l := range lists {
		a.logger.Infof("warming up %s", l.Name)
		errs = append(errs,
			a.Stats.WarmUpList(ctx, l.ID),
			a.Stats.WarmUpMonths(ctx, l.ID, months),
		)
	}
	return errors.Join(errs...)
}

// RebuildRecent refreshes the recent-thread values of every list.
func (a *App) RebuildRecent(ctx context.Context) error {
	lists, err := a.Store.GetMailingLists(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, l := range lists {
		if err := a.Stats.RebuildRecent(ctx, l.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Reindex queues every email of the lists for indexing and sends them to
// the index.
func (a *App) Reindex(ctx context.Context, names []string) (int, error) {
	lists, err := a.Lists(ctx, names)
	if err != nil {
		return 0, err
	}
	for _, l := range lists {
		n, err := a.Index.Reindex(ctx, l.Name)
		if err != nil {
			return 0, err
		}
		a.logger.Infof("queued %d emails of %s for indexing", n, l.Name)
	}
	return a.Index.Update(ctx)
}

// ErrNoDirectory is returned by directory operations when the list
// directory is disabled.
var ErrNoDirectory = errors.New("list directory is not enabled")

// SyncDirectory imports new lists from the directory, then links senders
// to directory users. With overwrite, already linked senders are checked
// again.
func (a *App) SyncDirectory(ctx context.Context, overwrite bool) error {
	if a.Directory == nil {
		return ErrNoDirectory
	}
	names, err := a.Directory.ImportNewLists(ctx)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		a.logger.Infof("imported %d new lists from the directory", len(names))
	}
	linked, err := a.Directory.SyncAll(ctx, overwrite)
	if err != nil {
		return err
	}
	a.logger.Infof("linked %d senders to directory users", linked)
	return nil
}
