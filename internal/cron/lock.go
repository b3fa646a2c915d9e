package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// Unlock releases a lock obtained from Locker.TryLock.
type Unlock func(ctx context.Context) error

// Locker grants at most one cron worker the right to run a cycle.
type Locker interface {
	TryLock(ctx context.Context) (Unlock, bool, error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock is a lease on a single Redis key. Each successful TryLock writes
// a fresh token, and the returned Unlock only deletes the key while it still
// holds that token.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("cron lock: redis client required")
	case key == "":
		return nil, errors.New("cron lock: key required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

// TTL is the lease length; a cycle that outlives it may overlap another.
func (l *RedisLock) TTL() time.Duration { return l.ttl }

func (l *RedisLock) TryLock(ctx context.Context) (Unlock, bool, error) {
	token := uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("cron lock %s: %w", l.key, err)
	}
	if !won {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if _, err := l.store.DeleteIfValue(ctx, l.key, token); err != nil {
			return fmt.Errorf("cron unlock %s: %w", l.key, err)
		}
		return nil
	}, true, nil
}
