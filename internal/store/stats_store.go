package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// CountParticipantsBetween returns the number of distinct senders who
// posted to a list in [begin, end).
func (q *Queries) CountParticipantsBetween(
	ctx context.Context,
	listID int64,
	begin, end time.Time,
) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n, `
		SELECT COUNT(DISTINCT sender_id) FROM emails
		WHERE mailinglist_id = ? AND date >= ? AND date < ?`,
		listID, begin.UTC(), end.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("counting participants of list %d: %w", listID, err)
	}
	return n, nil
}

// CountPostersBetween counts the emails posted to a list in [begin, end)
// per sender address and display name.
func (q *Queries) CountPostersBetween(
	ctx context.Context,
	listID int64,
	begin, end time.Time,
) ([]PosterCount, error) {
	var posters []PosterCount
	err := sqlx.SelectContext(ctx, q.db, &posters, `
		SELECT s.address AS address, e.sender_name AS sender_name, COUNT(*) AS count
		FROM emails e JOIN senders s ON s.id = e.sender_id
		WHERE e.mailinglist_id = ? AND e.date >= ? AND e.date < ?
		GROUP BY s.address, e.sender_name`,
		listID, begin.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("counting posters of list %d: %w", listID, err)
	}
	return posters, nil
}

// CountThreadParticipants returns the number of distinct senders in a
// thread.
func (q *Queries) CountThreadParticipants(ctx context.Context, threadID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n,
		"SELECT COUNT(DISTINCT sender_id) FROM emails WHERE thread_id = ?", threadID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting participants of thread %d: %w", threadID, err)
	}
	return n, nil
}

// CountEmailsPerThread returns the email count of each given thread.
func (q *Queries) CountEmailsPerThread(ctx context.Context, threadIDs []int64) ([]ThreadCount, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}
	query, args, err := inClause(`
		SELECT t.id AS thread_id, t.date_active AS date_active, COUNT(e.id) AS count
		FROM threads t LEFT JOIN emails e ON e.thread_id = t.id
		WHERE t.id IN (?)
		GROUP BY t.id`, threadIDs)
	if err != nil {
		return nil, err
	}
	var counts []ThreadCount
	if err := sqlx.SelectContext(ctx, q.db, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("counting emails per thread: %w", err)
	}
	return counts, nil
}

// SumVotesPerThread returns the sum of vote values of each given thread.
func (q *Queries) SumVotesPerThread(ctx context.Context, threadIDs []int64) ([]ThreadCount, error) {
	if len(threadIDs) == 0 {
		return nil, nil
	}
	query, args, err := inClause(`
		SELECT t.id AS thread_id, t.date_active AS date_active,
			COALESCE(SUM(v.value), 0) AS count
		FROM threads t
		LEFT JOIN emails e ON e.thread_id = t.id
		LEFT JOIN votes v ON v.email_id = e.id
		WHERE t.id IN (?)
		GROUP BY t.id`, threadIDs)
	if err != nil {
		return nil, err
	}
	var sums []ThreadCount
	if err := sqlx.SelectContext(ctx, q.db, &sums, query, args...); err != nil {
		return nil, fmt.Errorf("summing votes per thread: %w", err)
	}
	return sums, nil
}

// FirstEmailDate returns the date of the oldest email of a list, or nil
// for an empty list.
func (q *Queries) FirstEmailDate(ctx context.Context, listID int64) (*time.Time, error) {
	var dates []time.Time
	err := sqlx.SelectContext(ctx, q.db, &dates,
		"SELECT date FROM emails WHERE mailinglist_id = ? ORDER BY date ASC LIMIT 1", listID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting first date of list %d: %w", listID, err)
	}
	if len(dates) == 0 {
		return nil, nil
	}
	return &dates[0], nil
}
