package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/forest"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
)

type reparented struct {
	email         *model.Email
	target        *model.Thread
	source        *model.Thread
	sourceDeleted bool
}

// SetParent attaches an email, with all of its replies, under another
// email of the same list. When the new parent is one of the email's own
// replies, that reply takes the email's former place. Moving across
// threads carries the whole subtree to the parent's thread and deletes
// the former thread if it ends up empty.
func (a *Archiver) SetParent(ctx context.Context, emailID, parentID int64) error {
	res, err := a.setParent(ctx, emailID, parentID)
	if err != nil {
		return err
	}
	a.publishReparent(res, false)
	return nil
}

func (a *Archiver) publishReparent(res *reparented, batch bool) {
	a.bus.Emit(events.Event{
		Type:         events.EvEmailReparented,
		ListID:       res.email.MailingListID,
		EmailID:      res.email.ID,
		ThreadID:     res.target.ID,
		FromThreadID: res.source.ID,
		Date:         res.email.Date,
		Batch:        batch,
	})
	if res.sourceDeleted {
		a.bus.Emit(events.Event{
			Type:     events.EvThreadDeleted,
			ListID:   res.source.MailingListID,
			ThreadID: res.source.ID,
			Date:     res.source.DateActive,
			Batch:    batch,
		})
	}
}

func (a *Archiver) setParent(ctx context.Context, emailID, parentID int64) (*reparented, error) {
	if emailID == parentID {
		return nil, ErrSelfParent
	}

	res := &reparented{}
	err := a.store.InTx(ctx, func(q store.Querier) error {
		email, err := q.GetEmail(ctx, emailID)
		if err != nil {
			return err
		}
		parent, err := q.GetEmail(ctx, parentID)
		if err != nil {
			return err
		}
		if email.MailingListID != parent.MailingListID {
			return ErrCrossList
		}
		res.email = email

		if res.source, err = q.GetThread(ctx, email.ThreadID); err != nil {
			return err
		}
		if res.target, err = q.GetThread(ctx, parent.ThreadID); err != nil {
			return err
		}

		tree, err := loadTree(ctx, q, email.ThreadID)
		if err != nil {
			return err
		}
		// Collected before any link changes.
		subtree := tree.Subtree(email.ID)
		oldParent := email.ParentID

		// The new link goes first: the email leaves the root slot (if it
		// had it) before the parent can take it.
		if err := q.SetEmailParent(ctx, email.ID, &parent.ID); err != nil {
			return err
		}
		if parent.ThreadID == email.ThreadID && tree.InSubtree(email.ID, parent.ID) {
			if err := q.SetEmailParent(ctx, parent.ID, oldParent); err != nil {
				return err
			}
		}

		if res.source.ID != res.target.ID {
			if err := a.moveSubtree(ctx, q, res, subtree); err != nil {
				return err
			}
		}

		if res.target.StartingEmailID, err = startingEmail(ctx, q, res.target.ID); err != nil {
			return err
		}
		if err := q.UpdateThread(ctx, *res.target); err != nil {
			return err
		}
		return recompute(ctx, q, res.target.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("attaching email %d to %d: %w", emailID, parentID, wrapTx(err))
	}
	return res, nil
}

// moveSubtree carries the emails of a subtree to the target thread and
// cleans up the source thread.
func (a *Archiver) moveSubtree(ctx context.Context, q store.Querier, res *reparented, subtree []int64) error {
	if err := q.MoveEmailsToThread(ctx, subtree, res.target.ID); err != nil {
		return err
	}
	latest, err := q.LatestEmailDate(ctx, res.target.ID)
	if err != nil {
		return err
	}
	if latest.After(res.target.DateActive) {
		res.target.DateActive = latest
	}

	remaining, err := q.CountThreadEmails(ctx, res.source.ID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		res.sourceDeleted = true
		return q.DeleteThread(ctx, res.source.ID)
	}

	if res.source.DateActive, err = q.LatestEmailDate(ctx, res.source.ID); err != nil {
		return err
	}
	if res.source.StartingEmailID, err = startingEmail(ctx, q, res.source.ID); err != nil {
		return err
	}
	if err := q.UpdateThread(ctx, *res.source); err != nil {
		return err
	}
	return recompute(ctx, q, res.source.ID)
}

// CheckOrphans attaches to an email the parentless emails of its list
// that reply to it. A missing email is a no-op.
func (a *Archiver) CheckOrphans(ctx context.Context, emailID int64) error {
	_, err := a.checkOrphans(ctx, emailID, false)
	return err
}

// checkOrphans returns the threads it changed.
func (a *Archiver) checkOrphans(ctx context.Context, emailID int64, batch bool) ([]int64, error) {
	email, err := a.store.GetEmail(ctx, emailID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	orphans, err := a.store.FindOrphans(ctx, email.MailingListID, email.MessageID, email.ID)
	if err != nil {
		return nil, err
	}

	var touched []int64
	var errs []error
	for _, orphanID := range orphans {
		res, err := a.setParent(ctx, orphanID, email.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		a.logger.Debugf("attached orphan %d to %s", orphanID, email.MessageID)
		touched = append(touched, res.target.ID)
		if !res.sourceDeleted {
			touched = append(touched, res.source.ID)
		}
		a.publishReparent(res, batch)
	}
	return touched, errors.Join(errs...)
}

func loadTree(ctx context.Context, q store.Querier, threadID int64) (*forest.Tree, error) {
	nodes, err := q.GetThreadNodes(ctx, threadID)
	if err != nil {
		return nil, err
	}
	fnodes := make([]forest.Node, len(nodes))
	for i, n := range nodes {
		fnodes[i] = forest.Node{ID: n.ID, ParentID: n.ParentID, Date: n.Date}
	}
	return forest.NewTree(fnodes), nil
}
