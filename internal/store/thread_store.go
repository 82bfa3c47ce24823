package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/listarchive/internal/model"
)

// CreateThread inserts t and sets its ID.
func (q *Queries) CreateThread(ctx context.Context, t *model.Thread) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO threads (mailinglist_id, thread_id, date_active, category_id, starting_email_id)
		VALUES (?, ?, ?, ?, ?)`,
		t.MailingListID, t.ThreadID, t.DateActive.UTC(), t.CategoryID, t.StartingEmailID,
	)
	if err != nil {
		return fmt.Errorf("creating thread %s: %w", t.ThreadID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading thread id: %w", err)
	}
	t.ID = id
	return nil
}

// GetThread retrieves a thread by row id.
func (q *Queries) GetThread(ctx context.Context, id int64) (*model.Thread, error) {
	var t model.Thread
	err := sqlx.GetContext(ctx, q.db, &t, "SELECT * FROM threads WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting thread %d: %w", id, notFound(err))
	}
	return &t, nil
}

// GetThreadByThreadID retrieves a thread by its hash within a list.
func (q *Queries) GetThreadByThreadID(
	ctx context.Context,
	listID int64,
	threadID string,
) (*model.Thread, error) {
	var t model.Thread
	err := sqlx.GetContext(ctx, q.db, &t,
		"SELECT * FROM threads WHERE mailinglist_id = ? AND thread_id = ?",
		listID, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting thread %s: %w", threadID, notFound(err))
	}
	return &t, nil
}

// UpdateThread writes the mutable fields of t.
func (q *Queries) UpdateThread(ctx context.Context, t model.Thread) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE threads SET date_active = ?, category_id = ?, starting_email_id = ?
		WHERE id = ?`,
		t.DateActive.UTC(), t.CategoryID, t.StartingEmailID, t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating thread %d: %w", t.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("updating thread %d: %w", t.ID, ErrNotFound)
	}
	return nil
}

// DeleteThread removes a thread and, through the foreign keys, whatever
// emails still belong to it.
func (q *Queries) DeleteThread(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM threads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting thread %d: %w", id, err)
	}
	return nil
}

// CountThreadEmails returns the number of emails in a thread.
func (q *Queries) CountThreadEmails(ctx context.Context, threadID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n, "SELECT COUNT(*) FROM emails WHERE thread_id = ?", threadID)
	if err != nil {
		return 0, fmt.Errorf("counting emails of thread %d: %w", threadID, err)
	}
	return n, nil
}

// LatestEmailDate returns the date of the most recent email in a thread.
func (q *Queries) LatestEmailDate(ctx context.Context, threadID int64) (time.Time, error) {
	var date time.Time
	err := sqlx.GetContext(ctx, q.db, &date,
		"SELECT date FROM emails WHERE thread_id = ? ORDER BY date DESC LIMIT 1", threadID,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("getting latest date of thread %d: %w", threadID, notFound(err))
	}
	return date, nil
}

// ThreadIDsBetween returns the threads of a list that started before end
// and were still active at begin, most recently active first.
func (q *Queries) ThreadIDsBetween(
	ctx context.Context,
	listID int64,
	begin, end time.Time,
) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, q.db, &ids, `
		SELECT t.id FROM threads t
		JOIN emails e ON e.id = t.starting_email_id
		WHERE t.mailinglist_id = ? AND e.date < ? AND t.date_active >= ?
		ORDER BY t.date_active DESC, t.id ASC`,
		listID, end.UTC(), begin.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying threads between %s and %s: %w", begin, end, err)
	}
	return ids, nil
}

// GetThreadIDs returns every thread of a list, most recently active first.
func (q *Queries) GetThreadIDs(ctx context.Context, listID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, q.db, &ids,
		"SELECT id FROM threads WHERE mailinglist_id = ? ORDER BY date_active DESC, id ASC",
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying threads of list %d: %w", listID, err)
	}
	return ids, nil
}

// GetOrCreateCategory returns the category with the given name.
func (q *Queries) GetOrCreateCategory(ctx context.Context, name string) (*model.ThreadCategory, error) {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO thread_categories (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating category %s: %w", name, err)
	}
	var c model.ThreadCategory
	err = sqlx.GetContext(ctx, q.db, &c, "SELECT * FROM thread_categories WHERE name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("getting category %s: %w", name, notFound(err))
	}
	return &c, nil
}

// AddFavorite marks a thread as a favorite of userID.
func (q *Queries) AddFavorite(ctx context.Context, threadID int64, userID string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO favorites (thread_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(thread_id, user_id) DO NOTHING`,
		threadID, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("adding favorite %d for %s: %w", threadID, userID, err)
	}
	return nil
}

// RemoveFavorite drops a favorite; a missing favorite is not an error.
func (q *Queries) RemoveFavorite(ctx context.Context, threadID int64, userID string) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE thread_id = ? AND user_id = ?", threadID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing favorite %d for %s: %w", threadID, userID, err)
	}
	return nil
}

// GetFavorites returns the favorites of a user, newest first.
func (q *Queries) GetFavorites(ctx context.Context, userID string) ([]model.Favorite, error) {
	var favs []model.Favorite
	err := sqlx.SelectContext(ctx, q.db, &favs,
		"SELECT * FROM favorites WHERE user_id = ? ORDER BY created_at DESC", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying favorites of %s: %w", userID, err)
	}
	return favs, nil
}
