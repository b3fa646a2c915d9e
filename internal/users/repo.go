package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/internal/repo"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
)

// Repository persists user accounts. Lookups return gorm.ErrRecordNotFound
// for unknown users.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, a Account) (*models.User, error) {
	row := a.row()
	if err := r.Handle(ctx, tx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *Repository) ByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	return repo.First[models.User](r.Handle(ctx, tx), "", "email = ?", NormalizeEmail(email))
}

func (r *Repository) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return repo.First[models.User](r.Handle(ctx, nil), "", "id = ?", id)
}

// RecordLogin stamps last_login_at and, when rehash is non-empty, swaps in
// the upgraded password hash in the same statement.
func (r *Repository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, rehash string) error {
	cols := map[string]any{"last_login_at": at.UTC()}
	if rehash != "" {
		cols["password_hash"] = rehash
	}
	return r.Handle(ctx, nil).Model(&models.User{}).Where("id = ?", id).UpdateColumns(cols).Error
}
