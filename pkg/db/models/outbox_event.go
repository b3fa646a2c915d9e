package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/localbiz-backend/pkg/db/types"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// OutboxEvent is one queued domain event. Rows start pending and settle
// either as published or as dead; dead rows double as the dead-letter queue.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       dbtypes.JSONB             `gorm:"column:payload;type:jsonb;not null"`
	State         enums.OutboxState         `gorm:"column:state;type:outbox_state;not null;default:pending"`
	Attempts      int                       `gorm:"column:attempts;not null;default:0"`
	NextAttemptAt time.Time                 `gorm:"column:next_attempt_at;not null"`
	LastError     *string                   `gorm:"column:last_error"`
	DeadReason    *enums.OutboxDeadReason   `gorm:"column:dead_reason;type:outbox_dead_reason"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	SettledAt     *time.Time                `gorm:"column:settled_at"`
}
