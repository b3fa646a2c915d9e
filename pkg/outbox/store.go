package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

const maxErrorLen = 1024

var (
	errNoTx = errors.New("outbox: transaction required")
	// ErrNotDead is returned by Requeue when the row is missing or still live.
	ErrNotDead = errors.New("outbox: event is not dead-lettered")
)

// Store persists outbox rows. Write methods ending in Tx join the caller's
// transaction so state changes and their events commit together.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnqueueTx(tx *gorm.DB, row models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.State = enums.OutboxStatePending
	if row.NextAttemptAt.IsZero() {
		row.NextAttemptAt = time.Now().UTC()
	}
	return tx.Create(&row).Error
}

// ClaimDueTx locks up to limit pending rows whose next attempt is due,
// oldest first. Concurrent publishers skip rows another one holds.
func (s *Store) ClaimDueTx(tx *gorm.DB, now time.Time, limit int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errNoTx
	}
	var rows []models.OutboxEvent
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("state = ? AND next_attempt_at <= ?", enums.OutboxStatePending, now.UTC()).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *Store) MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return settle(tx, id, map[string]any{
		"state":      enums.OutboxStatePublished,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": nil,
		"settled_at": at.UTC(),
	})
}

// RetryTx records a failed attempt and pushes the row back to next.
func (s *Store) RetryTx(tx *gorm.DB, id uuid.UUID, cause error, next time.Time) error {
	return settle(tx, id, map[string]any{
		"attempts":        gorm.Expr("attempts + 1"),
		"last_error":      clip(cause),
		"next_attempt_at": next.UTC(),
	})
}

// BuryTx dead-letters the row. It stays in the table for inspection and
// Requeue until retention prunes it.
func (s *Store) BuryTx(tx *gorm.DB, id uuid.UUID, reason enums.OutboxDeadReason, cause error, at time.Time) error {
	return settle(tx, id, map[string]any{
		"state":       enums.OutboxStateDead,
		"attempts":    gorm.Expr("attempts + 1"),
		"last_error":  clip(cause),
		"dead_reason": reason,
		"settled_at":  at.UTC(),
	})
}

func settle(tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(updates).Error
}

// DeadLetters lists dead rows, most recently buried first.
func (s *Store) DeadLetters(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OutboxEvent
	err := s.db.WithContext(ctx).
		Where("state = ?", enums.OutboxStateDead).
		Order("settled_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Requeue returns a dead row to pending with a fresh attempt budget.
func (s *Store) Requeue(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND state = ?", id, enums.OutboxStateDead).
		Updates(map[string]any{
			"state":           enums.OutboxStatePending,
			"attempts":        0,
			"dead_reason":     nil,
			"settled_at":      nil,
			"next_attempt_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotDead
	}
	return nil
}

// Prune deletes rows in a settled state that settled before cutoff.
// Pending rows are never pruned.
func (s *Store) Prune(ctx context.Context, state enums.OutboxState, cutoff time.Time) (int64, error) {
	if state == enums.OutboxStatePending {
		return 0, errors.New("outbox: pending rows cannot be pruned")
	}
	res := s.db.WithContext(ctx).
		Where("state = ? AND settled_at < ?", state, cutoff.UTC()).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func clip(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return &msg
}
