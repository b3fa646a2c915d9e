package businesses

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// BusinessDTO is the API shape for a business listing.
type BusinessDTO struct {
	ID              uuid.UUID            `json:"id"`
	OwnerID         uuid.UUID            `json:"owner_id"`
	Name            string               `json:"name"`
	Description     *string              `json:"description,omitempty"`
	Category        string               `json:"category"`
	Phone           *string              `json:"phone,omitempty"`
	Email           *string              `json:"email,omitempty"`
	Website         *string              `json:"website,omitempty"`
	AddressLine1    string               `json:"address_line1"`
	City            string               `json:"city"`
	State           string               `json:"state"`
	PostalCode      string               `json:"postal_code"`
	Status          enums.BusinessStatus `json:"status"`
	RejectionReason *string              `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time           `json:"reviewed_at,omitempty"`
	ReviewedBy      *uuid.UUID           `json:"reviewed_by,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// FromModel maps a persisted business to its DTO.
func FromModel(b *models.Business) *BusinessDTO {
	if b == nil {
		return nil
	}
	return &BusinessDTO{
		ID:              b.ID,
		OwnerID:         b.OwnerID,
		Name:            b.Name,
		Description:     b.Description,
		Category:        b.Category,
		Phone:           b.Phone,
		Email:           b.Email,
		Website:         b.Website,
		AddressLine1:    b.AddressLine1,
		City:            b.City,
		State:           b.State,
		PostalCode:      b.PostalCode,
		Status:          b.Status,
		RejectionReason: b.RejectionReason,
		ReviewedAt:      b.ReviewedAt,
		ReviewedBy:      b.ReviewedBy,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// FromModels maps a slice, never returning nil.
func FromModels(rows []models.Business) []BusinessDTO {
	out := make([]BusinessDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

// RegisterInput holds the owner-editable listing fields.
type RegisterInput struct {
	Name         string  `json:"name" validate:"required,max=200"`
	Description  *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category     string  `json:"category" validate:"required,max=100"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Website      *string `json:"website,omitempty" validate:"omitempty,url"`
	AddressLine1 string  `json:"address_line1" validate:"required,max=255"`
	City         string  `json:"city" validate:"required,max=100"`
	State        string  `json:"state" validate:"required,max=100"`
	PostalCode   string  `json:"postal_code" validate:"required,max=20"`
}

func (in RegisterInput) normalized() RegisterInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Description = trimOptional(in.Description)
	in.Phone = trimOptional(in.Phone)
	in.Email = trimOptional(in.Email)
	in.Website = trimOptional(in.Website)
	return in
}

func (in RegisterInput) missingField() string {
	switch {
	case in.Name == "":
		return "name"
	case in.Category == "":
		return "category"
	case in.AddressLine1 == "":
		return "address_line1"
	case in.City == "":
		return "city"
	case in.State == "":
		return "state"
	case in.PostalCode == "":
		return "postal_code"
	}
	return ""
}

func (in RegisterInput) apply(b *models.Business) {
	b.Name = in.Name
	b.Description = in.Description
	b.Category = in.Category
	b.Phone = in.Phone
	b.Email = in.Email
	b.Website = in.Website
	b.AddressLine1 = in.AddressLine1
	b.City = in.City
	b.State = in.State
	b.PostalCode = in.PostalCode
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
