package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/localbiz-backend/api/responses"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
)

type windowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Throttle caps attempts against a credential endpoint per client IP and per
// submitted email within a fixed window. A zero limit disables that bucket.
type Throttle struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func (t Throttle) active() bool {
	return t.Window > 0 && (t.PerIP > 0 || t.PerEmail > 0)
}

type bucket struct {
	kind  string
	value string
	limit int
}

// ThrottleAuth enforces t using the shared counter store.
func ThrottleAuth(store windowCounter, t Throttle, logg *logger.Logger) func(http.Handler) http.Handler {
	name := strings.ToLower(strings.TrimSpace(t.Name))
	if name == "" {
		name = "auth"
	}
	return func(next http.Handler) http.Handler {
		if !t.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var buckets []bucket
			if t.PerIP > 0 {
				if ip := clientIP(r); ip != "" {
					buckets = append(buckets, bucket{kind: "ip", value: ip, limit: t.PerIP})
				}
			}
			if t.PerEmail > 0 {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if digest := emailDigest(body); digest != "" {
					buckets = append(buckets, bucket{kind: "email", value: digest, limit: t.PerEmail})
				}
			}

			for _, b := range buckets {
				scope := b.kind + ":" + name + ":" + b.value
				allowed, attempts, err := store.FixedWindowAllow(ctx, scope, int64(b.limit), t.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if allowed {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"throttle": name,
						"bucket":   b.kind,
						"attempts": attempts,
						"limit":    b.limit,
					}), "auth attempt throttled")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(t.Window.Seconds())))
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the left-most forwarded address set by the load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// emailDigest hashes the normalized email so raw addresses never reach Redis.
func emailDigest(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:16])
}
