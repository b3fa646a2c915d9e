package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// BusinessSubmittedEvent is emitted when an owner registers or resubmits a business for review.
type BusinessSubmittedEvent struct {
	BusinessID   uuid.UUID `json:"business_id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Name         string    `json:"name"`
	Resubmission bool      `json:"resubmission"`
}

// BusinessStatusChangedEvent carries the post-decision business row.
type BusinessStatusChangedEvent struct {
	BusinessID      uuid.UUID            `json:"business_id"`
	OwnerID         uuid.UUID            `json:"owner_id"`
	Name            string               `json:"name"`
	Status          enums.BusinessStatus `json:"status"`
	PreviousStatus  enums.BusinessStatus `json:"previous_status"`
	RejectionReason *string              `json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID           `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time           `json:"reviewed_at,omitempty"`
}
