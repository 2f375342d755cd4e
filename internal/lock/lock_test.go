package lock

import (
	"context"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerExcludesConcurrentHolders(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	release, err := l.Acquire(ctx, "procedure:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "procedure:1", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	_, err = l.Acquire(ctx, "procedure:2", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, "procedure:1", time.Minute)
	assert.NoError(t, err)
}

func TestMemoryLockerExpires(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	// the stale holder must not release the new holder's lock
	require.NoError(t, stale(ctx))
	_, err = l.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestNoopLockerAlwaysGrants(t *testing.T) {
	release, err := NoopLocker{}.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("LOCK_REDIS_ADDR")
	if addr == "" {
		t.Skip("LOCK_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedisLocker(client, "customsledger:test:")
	release, err := l.Acquire(ctx, t.Name(), 5*time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, t.Name(), 5*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))
	release, err = l.Acquire(ctx, t.Name(), 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
