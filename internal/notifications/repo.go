package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/internal/repo"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/pagination"
)

// Repository stores owner notifications.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// pageQuery selects one user's notifications, newest first, strictly after
// After when set.
type pageQuery struct {
	UserID     uuid.UUID
	Limit      int
	After      *pagination.Cursor
	UnreadOnly bool
}

func (r *Repository) owned(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.Handle(ctx, nil).Model(&models.Notification{}).Where("user_id = ?", userID)
}

// Insert stores n, assigning an id when it has none.
func (r *Repository) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return r.Handle(ctx, nil).Create(n).Error
}

// Page fetches one row past the limit so the caller can tell if more exist.
func (r *Repository) Page(ctx context.Context, q pageQuery) ([]models.Notification, error) {
	stmt := r.owned(ctx, q.UserID)
	if q.UnreadOnly {
		stmt = stmt.Where("is_read = ?", false)
	}
	if c := q.After; c != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}

	rows := make([]models.Notification, 0, pagination.LimitWithBuffer(q.Limit))
	err := stmt.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(q.Limit)).
		Find(&rows).Error
	return rows, err
}

// MarkRead flags one notification as read. Re-marking keeps the original
// read_at, so the row matches whenever it belongs to userID and the returned
// bool reports whether it exists at all.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	res := r.owned(ctx, userID).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"is_read": true,
			"read_at": gorm.Expr("COALESCE(read_at, ?)", at),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.owned(ctx, userID).
		Where("is_read = ?", false).
		UpdateColumns(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// PurgeRead deletes read notifications created before cutoff.
func (r *Repository) PurgeRead(ctx context.Context, cutoff time.Time) (int64, error) {
	return purge(r.Handle(ctx, nil).Where("is_read = ?", true), cutoff)
}

// Purge deletes every notification created before cutoff.
func (r *Repository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	return purge(r.Handle(ctx, nil), cutoff)
}

func purge(stmt *gorm.DB, cutoff time.Time) (int64, error) {
	res := stmt.Where("created_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
