package archive

import (
	"context"
	"fmt"

	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
)

// DeleteEmail removes an email with its votes and attachments. Its
// replies move up to its parent; when the root is deleted its earliest
// reply becomes the new root and adopts the other replies. A thread left
// empty is deleted.
func (a *Archiver) DeleteEmail(ctx context.Context, emailID int64) error {
	var (
		email         *model.Email
		list          *model.MailingList
		thread        *model.Thread
		threadDeleted bool
	)

	err := a.store.InTx(ctx, func(q store.Querier) error {
		var err error
		if email, err = q.GetEmail(ctx, emailID); err != nil {
			return err
		}
		if list, err = q.GetMailingListByID(ctx, email.MailingListID); err != nil {
			return err
		}
		if thread, err = q.GetThread(ctx, email.ThreadID); err != nil {
			return err
		}

		tree, err := loadTree(ctx, q, email.ThreadID)
		if err != nil {
			return err
		}
		plan := tree.PlanRemoval(email.ID)
		if plan.NewRoot != nil {
			// Free the root slot for the new root before it moves in.
			if err := q.SetEmailParent(ctx, email.ID, &email.ID); err != nil {
				return err
			}
		}
		for _, m := range plan.Moves {
			if err := q.SetEmailParent(ctx, m.ID, m.ParentID); err != nil {
				return err
			}
		}

		if err := q.DeleteEmail(ctx, email.ID); err != nil {
			return err
		}

		remaining, err := q.CountThreadEmails(ctx, thread.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			threadDeleted = true
			return q.DeleteThread(ctx, thread.ID)
		}

		if thread.StartingEmailID == nil || *thread.StartingEmailID == email.ID {
			if thread.StartingEmailID, err = startingEmail(ctx, q, thread.ID); err != nil {
				return err
			}
		}
		if thread.DateActive, err = q.LatestEmailDate(ctx, thread.ID); err != nil {
			return err
		}
		if err := q.UpdateThread(ctx, *thread); err != nil {
			return err
		}
		return recompute(ctx, q, thread.ID)
	})
	if err != nil {
		return fmt.Errorf("deleting email %d: %w", emailID, wrapTx(err))
	}

	a.removeAttachments(list.Name, email)

	ev := events.Event{
		Type:     events.EvEmailDeleted,
		ListName: list.Name,
		ListID:   list.ID,
		EmailID:  email.ID,
		Date:     email.Date,
	}
	if !threadDeleted {
		ev.ThreadID = thread.ID
	}
	a.bus.Emit(ev)
	if threadDeleted {
		a.bus.Emit(events.Event{
			Type:     events.EvThreadDeleted,
			ListName: list.Name,
			ListID:   list.ID,
			ThreadID: thread.ID,
			Date:     thread.DateActive,
		})
	}
	return nil
}
