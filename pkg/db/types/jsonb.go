package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB carries raw JSON through the simple protocol as text so Postgres can
// cast it to jsonb. SQLite stores it as TEXT.
type JSONB []byte

// NewJSONB marshals v into a JSONB value.
func NewJSONB(v any) (JSONB, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONB(raw), nil
}

func (j *JSONB) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case string:
		*j = append((*j)[:0], v...)
	case []byte:
		*j = append((*j)[:0], v...)
	default:
		return fmt.Errorf("JSONB: unsupported Scan type %T", src)
	}
	return nil
}

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("JSONB: invalid json payload")
	}
	return string(j), nil
}

// MarshalJSON emits the raw document, or null when empty.
func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("JSONB: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[:0], data...)
	return nil
}

// Decode unmarshals the document into dest.
func (j JSONB) Decode(dest any) error {
	if len(j) == 0 {
		return fmt.Errorf("JSONB: empty document")
	}
	return json.Unmarshal(j, dest)
}
