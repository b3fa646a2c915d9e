package businesses

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/internal/repo"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// Repository persists businesses.
type Repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to business operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindByOwner returns the owner's business or gorm.ErrRecordNotFound.
func (r *Repository) FindByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (*models.Business, error) {
	return repo.First[models.Business](r.Handle(ctx, tx), "created_at ASC", "owner_id = ?", ownerID)
}

// FindByID loads a business by its UUID.
func (r *Repository) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Business, error) {
	return repo.First[models.Business](r.Handle(ctx, tx), "", "id = ?", id)
}

// Create inserts a new business row.
func (r *Repository) Create(ctx context.Context, tx *gorm.DB, business *models.Business) error {
	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}
	if business.Status == "" {
		business.Status = enums.BusinessStatusPending
	}
	return r.Handle(ctx, tx).Create(business).Error
}

// Resubmit replaces the listing fields of a rejected business and moves it
// back to pending. It only touches the row while it is still rejected and
// reports how many rows changed.
func (r *Repository) Resubmit(ctx context.Context, tx *gorm.DB, business *models.Business) (int64, error) {
	now := time.Now().UTC()
	result := r.Handle(ctx, tx).
		Model(&models.Business{}).
		Where("id = ? AND status = ?", business.ID, enums.BusinessStatusRejected).
		Updates(map[string]any{
			"name":             business.Name,
			"description":      business.Description,
			"category":         business.Category,
			"phone":            business.Phone,
			"email":            business.Email,
			"website":          business.Website,
			"address_line1":    business.AddressLine1,
			"city":             business.City,
			"state":            business.State,
			"postal_code":      business.PostalCode,
			"status":           enums.BusinessStatusPending,
			"rejection_reason": nil,
			"reviewed_at":      nil,
			"reviewed_by":      nil,
			"updated_at":       now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		business.Status = enums.BusinessStatusPending
		business.RejectionReason = nil
		business.ReviewedAt = nil
		business.ReviewedBy = nil
		business.UpdatedAt = now
	}
	return result.RowsAffected, nil
}

// ListByStatus returns every business in status ordered oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status enums.BusinessStatus) ([]models.Business, error) {
	var rows []models.Business
	if err := r.Handle(ctx, nil).
		Where("status = ?", status).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ReviewDecision is the column set written by an approve or decline.
type ReviewDecision struct {
	Status          enums.BusinessStatus
	RejectionReason *string
	ReviewedBy      uuid.UUID
	ReviewedAt      time.Time
}

// ApplyReviewDecision updates the single row identified by id, but only while
// it is still pending. A zero count means another reviewer got there first.
func (r *Repository) ApplyReviewDecision(ctx context.Context, tx *gorm.DB, id uuid.UUID, decision ReviewDecision) (int64, error) {
	result := r.Handle(ctx, tx).
		Model(&models.Business{}).
		Where("id = ? AND status = ?", id, enums.BusinessStatusPending).
		Updates(map[string]any{
			"status":           decision.Status,
			"rejection_reason": decision.RejectionReason,
			"reviewed_by":      decision.ReviewedBy,
			"reviewed_at":      decision.ReviewedAt,
			"updated_at":       decision.ReviewedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
