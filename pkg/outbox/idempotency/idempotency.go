// Package idempotency keeps Pub/Sub consumers from acting twice on the same
// outbox event when a message is redelivered.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/redis"
)

const processedScope = "evt:processed"

var (
	ErrNoStore    = errors.New("idempotency: store is required")
	ErrNoConsumer = errors.New("idempotency: consumer name is required")
	ErrNoEventID  = errors.New("idempotency: event id is required")
)

// Manager records, per consumer, which event ids have been handled.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if ttl < 0 {
		return nil, errors.New("idempotency: ttl must not be negative")
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Claim reports whether the caller is the first to see eventID for consumer.
// A false result with a nil error means the event was already handled.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
}

// Release drops a claim so that a redelivered message is handled again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	consumer = strings.TrimSpace(consumer)
	switch {
	case consumer == "":
		return "", ErrNoConsumer
	case eventID == uuid.Nil:
		return "", ErrNoEventID
	}
	return m.store.IdempotencyKey(processedScope+":"+consumer, eventID.String()), nil
}
