package validators

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
)

// Query reads optional query parameters and collects every malformed one,
// so a client sees all of its mistakes in a single 400.
type Query struct {
	values url.Values
	bad    map[string]string
}

func ReadQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query()}
}

func (q *Query) raw(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

func (q *Query) reject(key, problem string) {
	if q.bad == nil {
		q.bad = map[string]string{}
	}
	q.bad[key] = problem
}

// Int returns def when key is absent and rejects values outside [lo, hi].
func (q *Query) Int(key string, def, lo, hi int) int {
	raw := q.raw(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		q.reject(key, "must be an integer")
	case v < lo || v > hi:
		q.reject(key, fmt.Sprintf("must be between %d and %d", lo, hi))
	default:
		return v
	}
	return def
}

func (q *Query) Bool(key string) bool {
	raw := q.raw(key)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.reject(key, "must be true or false")
	}
	return v
}

// Text trims key and truncates it to maxRunes; maxRunes <= 0 keeps it whole.
func (q *Query) Text(key string, maxRunes int) string {
	return SanitizeString(q.values.Get(key), maxRunes)
}

// Err is nil when every parameter read so far was well formed.
func (q *Query) Err() error {
	if len(q.bad) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameters").WithDetails(q.bad)
}

// SanitizeString trims input and truncates it to maxRunes without splitting
// a multi-byte character.
func SanitizeString(input string, maxRunes int) string {
	trimmed := strings.TrimSpace(input)
	if maxRunes <= 0 || utf8.RuneCountInString(trimmed) <= maxRunes {
		return trimmed
	}
	return strings.TrimSpace(string([]rune(trimmed)[:maxRunes]))
}
