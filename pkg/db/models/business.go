package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// Business is a directory listing owned by a single user and gated by admin review.
type Business struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID         uuid.UUID            `gorm:"column:owner_id;type:uuid;not null;uniqueIndex"`
	Name            string               `gorm:"column:name;not null"`
	Description     *string              `gorm:"column:description"`
	Category        string               `gorm:"column:category;not null"`
	Phone           *string              `gorm:"column:phone"`
	Email           *string              `gorm:"column:email"`
	Website         *string              `gorm:"column:website"`
	AddressLine1    string               `gorm:"column:address_line1;not null"`
	City            string               `gorm:"column:city;not null"`
	State           string               `gorm:"column:state;not null"`
	PostalCode      string               `gorm:"column:postal_code;not null"`
	Status          enums.BusinessStatus `gorm:"column:status;type:business_status;not null;default:pending"`
	RejectionReason *string              `gorm:"column:rejection_reason"`
	ReviewedAt      *time.Time           `gorm:"column:reviewed_at"`
	ReviewedBy      *uuid.UUID           `gorm:"column:reviewed_by;type:uuid"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
