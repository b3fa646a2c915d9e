// Package pagination implements keyset paging over (created_at, id)
// descending. Cursors are opaque to clients.
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// cursorLen is 8 bytes of unix nanoseconds followed by the 16 id bytes.
const cursorLen = 8 + 16

var ErrBadCursor = errors.New("pagination: malformed cursor")

type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func (c Cursor) String() string {
	var buf [cursorLen]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(c.CreatedAt.UnixNano()))
	copy(buf[8:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) != cursorLen {
		return nil, ErrBadCursor
	}
	id, err := uuid.FromBytes(raw[8:])
	if err != nil {
		return nil, ErrBadCursor
	}
	nanos := int64(binary.BigEndian.Uint64(raw[:8]))
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// NormalizeLimit clamps limit to [1, MaxLimit], defaulting non-positive values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer asks for one extra row so Trim can tell whether another page exists.
func LimitWithBuffer(limit int) int { return NormalizeLimit(limit) + 1 }

// Trim cuts a buffered result down to one page and returns the next cursor,
// or "" on the last page.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, cursorOf(rows[limit-1]).String()
}
