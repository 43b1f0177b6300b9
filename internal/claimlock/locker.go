// Package claimlock serializes fee claims per token with expiring locks.
package claimlock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned by Release when the caller no longer owns the lock
var ErrNotHeld = errors.New("claim lock not held")

// Locker grants at most one live lock per token. A lock past its TTL is
// treated as absent so a crashed holder never blocks claims for longer.
type Locker interface {
	// Acquire reports false without waiting when another owner holds the lock
	Acquire(ctx context.Context, tokenID uint, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, tokenID uint, owner string) error
}
