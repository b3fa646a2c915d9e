package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/localbiz-backend/pkg/db/types"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// Notification stores in-app notifications addressed to a single user.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null" json:"type"`
	Title     string                 `gorm:"column:title;type:text;not null" json:"title"`
	Message   string                 `gorm:"column:message;type:text;not null" json:"message"`
	Data      dbtypes.JSONB          `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	IsRead    bool                   `gorm:"column:is_read;not null;default:false" json:"is_read"`
	ReadAt    *time.Time             `gorm:"column:read_at;type:timestamptz" json:"read_at,omitempty"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
