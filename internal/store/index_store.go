package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// EnqueueIndex queues emails for the full-text indexer. A later entry
// for the same email replaces the earlier one.
func (q *Queries) EnqueueIndex(ctx context.Context, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := sqlx.PreparexContext(ctx, q.db, `
		INSERT OR REPLACE INTO index_queue (email_id, list_name, action, queued_at)
		VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing index enqueue: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		queued := e.QueuedAt
		if queued.IsZero() {
			queued = now
		}
		if _, err := stmt.ExecContext(ctx, e.EmailID, e.ListName, e.Action, queued.UTC()); err != nil {
			return fmt.Errorf("queueing email %d for indexing: %w", e.EmailID, err)
		}
	}
	return nil
}

// GetPendingIndex returns up to limit queued entries, oldest first.
func (q *Queries) GetPendingIndex(ctx context.Context, limit int) ([]IndexEntry, error) {
	var entries []IndexEntry
	err := sqlx.SelectContext(ctx, q.db, &entries, `
		SELECT email_id, list_name, action, queued_at FROM index_queue
		ORDER BY queued_at, email_id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying index queue: %w", err)
	}
	return entries, nil
}

// ClearIndex removes processed entries from the queue.
func (q *Queries) ClearIndex(ctx context.Context, emailIDs []int64) error {
	if len(emailIDs) == 0 {
		return nil
	}
	query, args, err := inClause("DELETE FROM index_queue WHERE email_id IN (?)", emailIDs)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing %d index entries: %w", len(emailIDs), err)
	}
	return nil
}
