package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/listarchive/internal/model"
)

// GetVote returns the vote of userID on an email.
func (q *Queries) GetVote(ctx context.Context, emailID int64, userID string) (*model.Vote, error) {
	var v model.Vote
	err := sqlx.GetContext(ctx, q.db, &v,
		"SELECT * FROM votes WHERE email_id = ? AND user_id = ?", emailID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting vote of %s on email %d: %w", userID, emailID, notFound(err))
	}
	return &v, nil
}

// UpsertVote records or replaces the vote of userID on an email.
func (q *Queries) UpsertVote(ctx context.Context, emailID int64, userID string, value int) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO votes (email_id, user_id, value, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email_id, user_id) DO UPDATE SET value = excluded.value`,
		emailID, userID, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving vote of %s on email %d: %w", userID, emailID, err)
	}
	return nil
}

// DeleteVote removes the vote of userID on an email, if any.
func (q *Queries) DeleteVote(ctx context.Context, emailID int64, userID string) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM votes WHERE email_id = ? AND user_id = ?", emailID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting vote of %s on email %d: %w", userID, emailID, err)
	}
	return nil
}

type voteCounts struct {
	Likes    int `db:"likes"`
	Dislikes int `db:"dislikes"`
}

// CountEmailVotes returns the likes and dislikes of an email.
func (q *Queries) CountEmailVotes(ctx context.Context, emailID int64) (int, int, error) {
	var c voteCounts
	err := sqlx.GetContext(ctx, q.db, &c, `
		SELECT
			COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0) AS likes,
			COALESCE(SUM(CASE WHEN value = -1 THEN 1 ELSE 0 END), 0) AS dislikes
		FROM votes WHERE email_id = ?`,
		emailID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("counting votes of email %d: %w", emailID, err)
	}
	return c.Likes, c.Dislikes, nil
}

// CountThreadVotes returns the likes and dislikes over all emails of a
// thread.
func (q *Queries) CountThreadVotes(ctx context.Context, threadID int64) (int, int, error) {
	var c voteCounts
	err := sqlx.GetContext(ctx, q.db, &c, `
		SELECT
			COALESCE(SUM(CASE WHEN v.value = 1 THEN 1 ELSE 0 END), 0) AS likes,
			COALESCE(SUM(CASE WHEN v.value = -1 THEN 1 ELSE 0 END), 0) AS dislikes
		FROM votes v JOIN emails e ON e.id = v.email_id
		WHERE e.thread_id = ?`,
		threadID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("counting votes of thread %d: %w", threadID, err)
	}
	return c.Likes, c.Dislikes, nil
}
