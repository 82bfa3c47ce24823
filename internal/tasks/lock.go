package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/listarchive/internal/log"
)

// RunWithLock runs fn while holding the named lease. When another process
// holds it, fn is skipped and RunWithLock reports false.
func RunWithLock(
	ctx context.Context,
	leases Leaser,
	name string,
	ttl time.Duration,
	fn func(ctx context.Context) error,
) (bool, error) {
	owner := uuid.NewString()
	acquired, err := leases.AcquireLease(ctx, name, owner, ttl)
	if err != nil {
		return false, err
	}
	if !acquired {
		log.Debugf("lock %s is held elsewhere, skipping", name)
		return false, nil
	}
	defer func() {
		if err := leases.ReleaseLease(context.WithoutCancel(ctx), name, owner); err != nil {
			log.Warnf("releasing lock %s: %v", name, err)
		}
	}()

	return true, fn(ctx)
}
