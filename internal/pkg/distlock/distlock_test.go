package distlock

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

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, "newsletter-migrations", time.Minute)
	second := NewRedisLock(client, "newsletter-migrations", time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:newsletter-migrations"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A non-owner release leaves the key in place.
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:newsletter-migrations"))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("lock:newsletter-migrations"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Expires(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, "job", time.Second)
	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = NewRedisLock(client, "job", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLock(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	ran := false
	err := WithLock(ctx, NewRedisLock(client, "job", time.Minute), func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:job"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:job"), "lock released after fn")
}

func TestWithLock_Held(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	holder := NewRedisLock(client, "job", time.Minute)
	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = WithLock(ctx, NewRedisLock(client, "job", time.Minute), func(context.Context) error {
		t.Fatal("fn must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestWithLock_PropagatesError(t *testing.T) {
	mr, client := newRedis(t)
	boom := errors.New("boom")

	err := WithLock(context.Background(), NewRedisLock(client, "job", time.Minute), func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:job"))
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "newsletter-migrations")
	assert.Equal(t, lock.lockID, NewPGAdvisoryLock(db, "newsletter-migrations").lockID)
	assert.NotEqual(t, lock.lockID, NewPGAdvisoryLock(db, "other").lockID)

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_NotAcquired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(db, "newsletter-migrations")
	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err = WithLock(context.Background(), lock, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_PicksBackend(t *testing.T) {
	_, client := newRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.IsType(t, &RedisLock{}, New(client, db, "k", time.Minute))
	assert.IsType(t, &PGAdvisoryLock{}, New(nil, db, "k", time.Minute))
}
