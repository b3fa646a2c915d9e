package notifications

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

const businessRowSchema = `{
  "type": "object",
  "required": ["id", "owner_id", "status"],
  "properties": {
    "id": {"type": "string", "format": "uuid"},
    "owner_id": {"type": "string", "format": "uuid"},
    "name": {"type": "string"},
    "status": {"type": "string"},
    "rejection_reason": {"type": ["string", "null"]}
  }
}`

var hookSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "properties": {
    "type": {"type": "string", "enum": ["INSERT", "UPDATE"]},
    "table": {"type": "string", "enum": ["businesses"]},
    "record": ` + businessRowSchema + `,
    "new": ` + businessRowSchema + `,
    "old_record": {"type": ["object", "null"]}
  },
  "anyOf": [
    {"required": ["record"]},
    {"required": ["new"]}
  ]
}`)

// HookPayload is the change event posted by the database webhook.
type HookPayload struct {
	Type      string          `json:"type"`
	Table     string          `json:"table,omitempty"`
	Record    *businessRow    `json:"record,omitempty"`
	New       *businessRow    `json:"new,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

type businessRow struct {
	ID              uuid.UUID            `json:"id"`
	OwnerID         uuid.UUID            `json:"owner_id"`
	Name            string               `json:"name"`
	Status          enums.BusinessStatus `json:"status"`
	RejectionReason *string              `json:"rejection_reason"`
}

// ParseHookPayload validates body against the hook schema and returns the
// post-update row as a status change. "record" wins over "new" when both are
// present. The event type is optional, and a status the handler does not act
// on still parses so that it can be acknowledged as a no-op.
func ParseHookPayload(body []byte) (StatusChange, error) {
	result, err := gojsonschema.Validate(hookSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return StatusChange{}, fmt.Errorf("parse hook payload: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return StatusChange{}, fmt.Errorf("hook payload validation failed: %s", strings.Join(errs, "; "))
	}

	var payload HookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return StatusChange{}, fmt.Errorf("decode hook payload: %w", err)
	}
	row := payload.Record
	if row == nil {
		row = payload.New
	}
	if row == nil {
		return StatusChange{}, fmt.Errorf("hook payload missing row")
	}

	return StatusChange{
		BusinessID:      row.ID,
		OwnerID:         row.OwnerID,
		Name:            row.Name,
		Status:          row.Status,
		RejectionReason: row.RejectionReason,
		Source:          SourceHook,
	}, nil
}
