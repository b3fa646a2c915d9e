// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads before anything is published.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/payloads"
)

// Route binds an event type to its aggregate and destination topic.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// Resolved is a validated row ready to publish.
type Resolved struct {
	Route
	EventID  uuid.UUID
	Envelope outbox.Envelope
	Payload  any
}

type Registry struct {
	routes map[enums.OutboxEventType]Route
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) Route {
	return Route{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			v := new(T)
			if err := json.Unmarshal(raw, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

func New(cfg config.PubSubConfig) (*Registry, error) {
	topic := strings.TrimSpace(cfg.BusinessTopic)
	if topic == "" {
		return nil, errors.New("registry: business topic is required")
	}
	r := &Registry{routes: map[enums.OutboxEventType]Route{}}
	for _, rt := range []Route{
		route[payloads.BusinessSubmittedEvent](enums.EventBusinessSubmitted, enums.AggregateBusiness, topic),
		route[payloads.BusinessStatusChangedEvent](enums.EventBusinessStatusChanged, enums.AggregateBusiness, topic),
	} {
		r.routes[rt.EventType] = rt
	}
	return r, nil
}

// Topics returns every distinct destination, sorted.
func (r *Registry) Topics() []string {
	var topics []string
	for _, rt := range r.routes {
		if !slices.Contains(topics, rt.Topic) {
			topics = append(topics, rt.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve validates row against its route. Every failure is permanent:
// retrying the same bytes cannot succeed.
func (r *Registry) Resolve(row models.OutboxEvent) (*Resolved, error) {
	rt, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("no route for event type %q", row.EventType))
	case rt.AggregateType != row.AggregateType:
		return nil, Permanent(fmt.Errorf("%s expects aggregate %q, row has %q", row.EventType, rt.AggregateType, row.AggregateType))
	case row.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("aggregate id is empty"))
	}

	env, eventID, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	if eventID != row.ID {
		return nil, Permanent(fmt.Errorf("envelope event id %s does not match row %s", eventID, row.ID))
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("%s has no data", row.EventType))
	}
	payload, err := rt.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s: %w", row.EventType, err))
	}
	return &Resolved{Route: rt, EventID: eventID, Envelope: env, Payload: payload}, nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err so the publisher dead-letters instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
