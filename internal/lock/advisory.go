package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
)

// Advisory uses a PostgreSQL session advisory lock. The lock lives on one
// pooled connection, which is held until Release so the unlock runs in the
// same session. A dropped connection frees the lock.
type Advisory struct {
	db     *sql.DB
	lockID int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewAdvisory derives a stable lock id from key.
func NewAdvisory(db *sql.DB, key string) *Advisory {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return &Advisory{db: db, lockID: int64(h.Sum64())}
}

// Acquire implements Locker.
func (l *Advisory) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release implements Locker.
func (l *Advisory) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}

	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	if closeErr != nil && !errors.Is(closeErr, sql.ErrConnDone) {
		return closeErr
	}
	return nil
}
