package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/payloads"
)

// ConsumerName namespaces the idempotency keys written by the consumer.
const ConsumerName = "business-notifications"

type statusChangeHandler interface {
	HandleStatusChange(ctx context.Context, change StatusChange) (*models.Notification, error)
}

type idempotencyGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns business_status_changed events into owner notifications,
// at most once per event id.
type Consumer struct {
	handler      statusChangeHandler
	subscription *pubsub.Subscriber
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

// NewConsumer builds a business notification consumer.
func NewConsumer(handler statusChangeHandler, subscription *pubsub.Subscriber, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("status change handler required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		handler:      handler,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventBusinessStatusChanged) {
		c.logg.Info(logCtx, "skipping unrelated event")
		return processResult{ack: true}
	}

	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, eventID.String())

	first, err := c.idempotency.Claim(ctx, ConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !first {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	// Undecodable payloads are dropped with the claim kept.
	var payload payloads.BusinessStatusChangedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithBusinessID(logCtx, payload.BusinessID.String())
	if _, err := c.handler.HandleStatusChange(logCtx, StatusChange{
		BusinessID:      payload.BusinessID,
		OwnerID:         payload.OwnerID,
		Name:            payload.Name,
		Status:          payload.Status,
		RejectionReason: payload.RejectionReason,
		Source:          SourcePubSub,
	}); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		c.release(logCtx, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) release(ctx context.Context, eventID uuid.UUID) {
	if err := c.idempotency.Release(ctx, ConsumerName, eventID); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "release idempotency claim")
	}
}
