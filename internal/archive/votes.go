package archive

import (
	"context"
	"fmt"

	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
)

// Vote records a user's like (+1) or dislike (-1) of an email; 0 clears
// the vote.
func (a *Archiver) Vote(ctx context.Context, emailID int64, userID string, value int) error {
	if value < model.VoteDislike || value > model.VoteLike {
		return fmt.Errorf("invalid vote value %d", value)
	}
	email, err := a.store.GetEmail(ctx, emailID)
	if err != nil {
		return err
	}

	if value == model.VoteNone {
		err = a.store.DeleteVote(ctx, emailID, userID)
	} else {
		err = a.store.UpsertVote(ctx, emailID, userID, value)
	}
	if err != nil {
		return err
	}

	a.bus.Emit(events.Event{
		Type:     events.EvVoteChanged,
		ListID:   email.MailingListID,
		ThreadID: email.ThreadID,
		EmailID:  email.ID,
	})
	return nil
}

// AddFavorite marks a thread as followed by userID.
func (a *Archiver) AddFavorite(ctx context.Context, threadID int64, userID string) error {
	if _, err := a.store.GetThread(ctx, threadID); err != nil {
		return err
	}
	return a.store.AddFavorite(ctx, threadID, userID)
}

// RemoveFavorite stops following a thread.
func (a *Archiver) RemoveFavorite(ctx context.Context, threadID int64, userID string) error {
	return a.store.RemoveFavorite(ctx, threadID, userID)
}

// Favorites lists the threads followed by userID.
func (a *Archiver) Favorites(ctx context.Context, userID string) ([]model.Favorite, error) {
	return a.store.GetFavorites(ctx, userID)
}

// SetCategory labels a thread; an empty name clears the label.
func (a *Archiver) SetCategory(ctx context.Context, threadID int64, name string) error {
	return a.store.InTx(ctx, func(q store.Querier) error {
		thread, err := q.GetThread(ctx, threadID)
		if err != nil {
			return err
		}
		thread.CategoryID = nil
		if name != "" {
			c, err := q.GetOrCreateCategory(ctx, name)
			if err != nil {
				return err
			}
			thread.CategoryID = &c.ID
		}
		return q.UpdateThread(ctx, *thread)
	})
}
