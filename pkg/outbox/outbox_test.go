package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/pkg/db/dbtest"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/payloads"
)

func TestEmitStoresEnvelopeKeyedByRowID(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewStore(conn), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))

	businessID := uuid.New()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBusinessStatusChanged,
			AggregateType: enums.AggregateBusiness,
			AggregateID:   businessID,
			Actor:         &Actor{UserID: uuid.New(), Role: enums.RoleAdmin},
			Data: payloads.BusinessStatusChangedEvent{
				BusinessID: businessID,
				Name:       "Corner Bakery",
				Status:     enums.BusinessStatusActive,
			},
		})
	}))

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, enums.OutboxStatePending, row.State)
	assert.Equal(t, businessID, row.AggregateID)
	assert.False(t, row.NextAttemptAt.IsZero())

	env, eventID, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, row.ID, eventID)
	assert.Equal(t, envelopeVersion, env.Version)
	require.NotNil(t, env.Actor)
	assert.Equal(t, enums.RoleAdmin, env.Actor.Role)

	var data payloads.BusinessStatusChangedEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Corner Bakery", data.Name)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewStore(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBusinessSubmitted,
			AggregateType: enums.AggregateBusiness,
			AggregateID:   uuid.New(),
			Data:          payloads.BusinessSubmittedEvent{Name: "x"},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsBadInput(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewStore(conn), nil)
	ctx := context.Background()

	err := svc.Emit(ctx, nil, DomainEvent{EventType: enums.EventBusinessSubmitted, AggregateType: enums.AggregateBusiness})
	assert.ErrorIs(t, err, errNoTx)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{EventType: "order_created", AggregateType: enums.AggregateBusiness})
	})
	assert.ErrorContains(t, err, "unknown event type")
}

func TestDecodeEnvelopeRejectsBadID(t *testing.T) {
	_, _, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"nope","data":{}}`))
	assert.ErrorContains(t, err, "envelope event id")

	_, _, err = DecodeEnvelope([]byte(`{`))
	assert.ErrorContains(t, err, "decode envelope")
}

type seed struct {
	created time.Time
	next    time.Time
	state   enums.OutboxState
	settled *time.Time
}

func insert(t *testing.T, conn *gorm.DB, s seed) models.OutboxEvent {
	t.Helper()
	state := s.state
	if state == "" {
		state = enums.OutboxStatePending
	}
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventBusinessStatusChanged,
		AggregateType: enums.AggregateBusiness,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"data":{}}`),
		State:         state,
		NextAttemptAt: s.next,
		CreatedAt:     s.created,
		SettledAt:     s.settled,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row
}

func claim(t *testing.T, conn *gorm.DB, store *Store, now time.Time) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = store.ClaimDueTx(tx, now, 10)
		return err
	}))
	return rows
}

func TestClaimDueSkipsFutureAndSettledRows(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	now := time.Now().UTC()

	older := insert(t, conn, seed{created: now.Add(-3 * time.Minute), next: now.Add(-3 * time.Minute)})
	newer := insert(t, conn, seed{created: now.Add(-time.Minute), next: now.Add(-time.Minute)})
	insert(t, conn, seed{created: now.Add(-5 * time.Minute), next: now.Add(time.Hour)})
	insert(t, conn, seed{created: now.Add(-6 * time.Minute), next: now.Add(-time.Hour), state: enums.OutboxStateDead, settled: &now})

	rows := claim(t, conn, store, now)
	require.Len(t, rows, 2)
	assert.Equal(t, older.ID, rows[0].ID)
	assert.Equal(t, newer.ID, rows[1].ID)
}

func TestStoreLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	ok := insert(t, conn, seed{created: now, next: now})
	flaky := insert(t, conn, seed{created: now, next: now})
	broken := insert(t, conn, seed{created: now, next: now})

	retryAt := now.Add(30 * time.Second)
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if err := store.MarkPublishedTx(tx, ok.ID, now); err != nil {
			return err
		}
		if err := store.RetryTx(tx, flaky.ID, errors.New(strings.Repeat("x", maxErrorLen+10)), retryAt); err != nil {
			return err
		}
		return store.BuryTx(tx, broken.ID, enums.DeadReasonNonRetryable, errors.New("bad payload"), now)
	}))

	var got models.OutboxEvent
	require.NoError(t, conn.First(&got, "id = ?", ok.ID).Error)
	assert.Equal(t, enums.OutboxStatePublished, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.NotNil(t, got.SettledAt)

	require.NoError(t, conn.First(&got, "id = ?", flaky.ID).Error)
	assert.Equal(t, enums.OutboxStatePending, got.State)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.Len(t, *got.LastError, maxErrorLen)
	assert.Empty(t, claim(t, conn, store, now), "retried row is not due yet")
	assert.Len(t, claim(t, conn, store, retryAt.Add(time.Second)), 1)

	dead, err := store.DeadLetters(ctx, 0)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, broken.ID, dead[0].ID)
	require.NotNil(t, dead[0].DeadReason)
	assert.Equal(t, enums.DeadReasonNonRetryable, *dead[0].DeadReason)

	require.NoError(t, store.Requeue(ctx, broken.ID))
	require.NoError(t, conn.First(&got, "id = ?", broken.ID).Error)
	assert.Equal(t, enums.OutboxStatePending, got.State)
	assert.Zero(t, got.Attempts)
	assert.Nil(t, got.DeadReason)

	assert.ErrorIs(t, store.Requeue(ctx, broken.ID), ErrNotDead)
	assert.ErrorIs(t, store.Requeue(ctx, uuid.New()), ErrNotDead)
}

func TestPrune(t *testing.T) {
	conn := dbtest.Open(t)
	store := NewStore(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	old := now.Add(-30 * 24 * time.Hour)
	recent := now.Add(-time.Hour)
	insert(t, conn, seed{created: old, next: old, state: enums.OutboxStatePublished, settled: &old})
	insert(t, conn, seed{created: recent, next: recent, state: enums.OutboxStatePublished, settled: &recent})
	insert(t, conn, seed{created: old, next: old, state: enums.OutboxStateDead, settled: &old})
	insert(t, conn, seed{created: old, next: old})

	cutoff := now.Add(-14 * 24 * time.Hour)
	n, err := store.Prune(ctx, enums.OutboxStatePublished, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Prune(ctx, enums.OutboxStateDead, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Prune(ctx, enums.OutboxStatePending, cutoff)
	assert.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
