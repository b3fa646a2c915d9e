package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

const envelopeVersion = 1

// Actor is whoever caused the event.
type Actor struct {
	UserID uuid.UUID  `json:"userId"`
	Role   enums.Role `json:"role,omitempty"`
}

// Envelope is the JSON stored in outbox_events.payload and published verbatim
// as the Pub/Sub message body. EventID equals the outbox row id.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses raw and returns the event id as a UUID.
func DecodeEnvelope(raw []byte) (Envelope, uuid.UUID, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return env, uuid.Nil, fmt.Errorf("envelope event id: %w", err)
	}
	return env, id, nil
}
