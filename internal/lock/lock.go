// Package lock serializes uploads across goroutines and processes.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Wait when the context ends before the lock
// could be taken.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker is a non-blocking mutual exclusion primitive. A Locker instance
// belongs to one holder at a time; create one per concurrent caller.
type Locker interface {
	// Acquire tries once to take the lock and reports whether it did.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if it is still held.
	Release(ctx context.Context) error
}

// New picks the strongest backend available: Redis, then PostgreSQL, then a
// process-local lock.
func New(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) Locker {
	switch {
	case redisClient != nil:
		return NewRedis(redisClient, key, ttl)
	case db != nil:
		return NewAdvisory(db, key)
	default:
		return NewLocal()
	}
}

// Wait polls l until it is acquired, the backend fails or ctx ends.
func Wait(ctx context.Context, l Locker, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := l.Acquire(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", ErrNotAcquired, ctxErr)
			}
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Local is an in-process lock built on a one-slot channel.
type Local struct {
	slot chan struct{}
}

// NewLocal returns an unlocked Local.
func NewLocal() *Local {
	return &Local{slot: make(chan struct{}, 1)}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	select {
	case l.slot <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

// Release implements Locker. Releasing an unlocked Local is a no-op.
func (l *Local) Release(context.Context) error {
	select {
	case <-l.slot:
	default:
	}
	return nil
}
