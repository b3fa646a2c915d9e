package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/angelmondragon/localbiz-backend/pkg/redis"
)

func newLockClient(t *testing.T) (*pkgredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), mr
}

func TestRedisLockGrantsSingleHolder(t *testing.T) {
	client, mr := newLockClient(t)
	ctx := context.Background()
	key := client.LockKey("cron")

	a, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)

	unlock, won, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, won)
	assert.Equal(t, time.Minute, mr.TTL(key))

	_, won, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists(key))

	_, won, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestRedisLockUnlockLeavesNewHolder(t *testing.T) {
	client, mr := newLockClient(t)
	ctx := context.Background()
	key := client.LockKey("cron")

	lock, err := NewRedisLock(client, key, time.Second)
	require.NoError(t, err)
	unlock, won, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, won)

	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(key, "other-worker"))

	require.NoError(t, unlock(ctx))
	value, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-worker", value)
}

func TestNewRedisLockValidation(t *testing.T) {
	client, _ := newLockClient(t)
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(client, "", time.Minute)
	assert.Error(t, err)

	lock, err := NewRedisLock(client, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.TTL())
}
