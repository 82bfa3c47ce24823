package store

import (
	"context"
	"fmt"
	"time"
)

// AcquireLease takes the named lease for owner until ttl elapses. It
// returns false when another owner holds an unexpired lease. Re-acquiring
// a lease already held by owner extends it.
func (q *Queries) AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO leases (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE leases.expires_at <= ? OR leases.owner = excluded.owner`,
		name, owner, now.Add(ttl).UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("acquiring lease %s: %w", name, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquiring lease %s: %w", name, err)
	}
	return rows > 0, nil
}

// ReleaseLease drops the named lease if owner still holds it.
func (q *Queries) ReleaseLease(ctx context.Context, name, owner string) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM leases WHERE name = ? AND owner = ?", name, owner)
	if err != nil {
		return fmt.Errorf("releasing lease %s: %w", name, err)
	}
	return nil
}
