package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/payloads"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(config.PubSubConfig{BusinessTopic: " business-topic "})
	require.NoError(t, err)
	return reg
}

func row(t *testing.T, eventType enums.OutboxEventType, data any) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.Envelope{Version: 1, EventID: id.String(), OccurredAt: time.Now().UTC(), Data: raw})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: enums.AggregateBusiness,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestResolveStatusChanged(t *testing.T) {
	reg := newRegistry(t)
	reason := "Missing phone number"
	ev := row(t, enums.EventBusinessStatusChanged, payloads.BusinessStatusChangedEvent{
		BusinessID:      uuid.New(),
		Name:            "Corner Bakery",
		Status:          enums.BusinessStatusRejected,
		PreviousStatus:  enums.BusinessStatusPending,
		RejectionReason: &reason,
	})

	resolved, err := reg.Resolve(ev)
	require.NoError(t, err)
	assert.Equal(t, "business-topic", resolved.Topic)
	assert.Equal(t, ev.ID, resolved.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())

	payload, ok := resolved.Payload.(*payloads.BusinessStatusChangedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, enums.BusinessStatusRejected, payload.Status)
	require.NotNil(t, payload.RejectionReason)
	assert.Equal(t, reason, *payload.RejectionReason)
}

func TestResolveSubmitted(t *testing.T) {
	resolved, err := newRegistry(t).Resolve(row(t, enums.EventBusinessSubmitted, payloads.BusinessSubmittedEvent{Name: "Shop"}))
	require.NoError(t, err)
	assert.IsType(t, &payloads.BusinessSubmittedEvent{}, resolved.Payload)
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newRegistry(t)
	cases := map[string]func(*models.OutboxEvent){
		"unknown event":    func(r *models.OutboxEvent) { r.EventType = "business_deleted" },
		"wrong aggregate":  func(r *models.OutboxEvent) { r.AggregateType = "notification" },
		"nil aggregate id": func(r *models.OutboxEvent) { r.AggregateID = uuid.Nil },
		"foreign event id": func(r *models.OutboxEvent) { r.ID = uuid.New() },
		"broken envelope":  func(r *models.OutboxEvent) { r.Payload = []byte(`{"data":`) },
		"null data":        func(r *models.OutboxEvent) { *r = row(t, r.EventType, nil) },
		"mistyped data":    func(r *models.OutboxEvent) { *r = row(t, r.EventType, map[string]any{"status": 7}) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			ev := row(t, enums.EventBusinessStatusChanged, payloads.BusinessStatusChangedEvent{Name: "x"})
			mutate(&ev)
			_, err := reg.Resolve(ev)
			require.Error(t, err)
			assert.True(t, IsPermanent(err), "expected permanent error, got %v", err)
		})
	}
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(config.PubSubConfig{BusinessTopic: "  "})
	assert.Error(t, err)
	assert.Equal(t, []string{"business-topic"}, newRegistry(t).Topics())
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("boom")
	err := Permanent(base)
	assert.ErrorIs(t, err, base)
	assert.True(t, IsPermanent(err))
	assert.False(t, IsPermanent(base))
}
