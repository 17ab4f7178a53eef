package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx))
	require.NoError(t, l.Release(ctx))

	ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitTimesOut(t *testing.T) {
	l := NewLocal()
	_, _ = l.Acquire(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := Wait(ctx, l, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitAcquiresAfterRelease(t *testing.T) {
	l := NewLocal()
	_, _ = l.Acquire(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = l.Release(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, Wait(ctx, l, 5*time.Millisecond))
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context) (bool, error) { return false, errors.New("backend down") }
func (failingLocker) Release(context.Context) error         { return nil }

func TestWaitReturnsBackendError(t *testing.T) {
	err := Wait(context.Background(), failingLocker{}, time.Millisecond)
	assert.EqualError(t, err, "backend down")
}

func TestRedisLockOwnership(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedis(client, "uploads", time.Minute)
	second := NewRedis(client, "uploads", time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:uploads"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// a non-owner release leaves the key alone
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:uploads"))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("lock:uploads"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	first := NewRedis(client, "uploads", time.Second)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := first.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	mr.FastForward(2 * time.Minute)

	second := NewRedis(client, "uploads", time.Second)
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	extended, err = first.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestRedisLockBackendError(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	_, err := NewRedis(client, "uploads", time.Second).Acquire(context.Background())
	assert.Error(t, err)
}

func TestAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	l := NewAdvisory(db, "uploads")
	ctx := context.Background()

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second acquire on the same holder does not hit the database
	ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx))
	require.NoError(t, l.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLockHeldElsewhere(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	l := NewAdvisory(db, "uploads")
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPicksBackend(t *testing.T) {
	_, client := setupTestRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.IsType(t, &Redis{}, New(client, db, "k", time.Second))
	assert.IsType(t, &Advisory{}, New(nil, db, "k", time.Second))
	assert.IsType(t, &Local{}, New(nil, nil, "k", time.Second))
}
