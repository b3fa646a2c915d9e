// Package session keeps refresh sessions in Redis, one per access token id.
// A session is live while its key exists; access tokens whose session is
// gone are refused even before they expire.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type kv interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DeleteIfValue(ctx context.Context, key, expected string) (bool, error)
	AccessSessionKey(accessID string) string
}

// Checker is the read side used by request authentication.
type Checker interface {
	Live(ctx context.Context, sessionID string) (bool, error)
}

// Holder is who a session was opened for. Rotation re-issues exactly this
// role, so refreshing never widens access.
type Holder struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
}

func (h Holder) valid() bool { return h.UserID != uuid.Nil && h.Role.IsValid() }

// Grant is a freshly opened session.
type Grant struct {
	SessionID    string
	RefreshToken string
}

// entry is the stored value. Only a digest of the refresh token is kept.
type entry struct {
	Digest   string    `json:"digest"`
	Holder   Holder    `json:"holder"`
	OpenedAt time.Time `json:"opened_at"`
}

type Store struct {
	kv  kv
	ttl time.Duration
	now func() time.Time
}

// NewStore requires the refresh TTL to outlive the access token TTL.
func NewStore(backend kv, cfg config.JWTConfig) (*Store, error) {
	if backend == nil {
		return nil, errors.New("session backend is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= 0 || ttl <= access {
		return nil, fmt.Errorf("refresh ttl %s must be positive and exceed access ttl %s", ttl, access)
	}
	return &Store{kv: backend, ttl: ttl, now: time.Now}, nil
}

func (s *Store) Open(ctx context.Context, h Holder) (Grant, error) {
	if !h.valid() {
		return Grant{}, errors.New("session holder is invalid")
	}
	g := Grant{SessionID: uuid.NewString()}
	var err error
	if g.RefreshToken, err = newRefreshToken(); err != nil {
		return Grant{}, err
	}
	raw, err := json.Marshal(entry{Digest: digest(g.RefreshToken), Holder: h, OpenedAt: s.now().UTC()})
	if err != nil {
		return Grant{}, fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, s.kv.AccessSessionKey(g.SessionID), string(raw), s.ttl); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Rotate trades a session and its refresh token for a new session. The old
// entry is removed with compare-and-delete, so of two concurrent rotations
// with the same token only one succeeds.
func (s *Store) Rotate(ctx context.Context, sessionID, refreshToken string) (Grant, Holder, error) {
	if strings.TrimSpace(sessionID) == "" || refreshToken == "" {
		return Grant{}, Holder{}, ErrInvalidRefreshToken
	}
	key := s.kv.AccessSessionKey(sessionID)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, redislib.Nil) {
		return Grant{}, Holder{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return Grant{}, Holder{}, err
	}

	var cur entry
	if json.Unmarshal([]byte(raw), &cur) != nil || !cur.Holder.valid() {
		return Grant{}, Holder{}, ErrInvalidRefreshToken
	}
	if subtle.ConstantTimeCompare([]byte(cur.Digest), []byte(digest(refreshToken))) != 1 {
		return Grant{}, Holder{}, ErrInvalidRefreshToken
	}

	consumed, err := s.kv.DeleteIfValue(ctx, key, raw)
	if err != nil {
		return Grant{}, Holder{}, err
	}
	if !consumed {
		return Grant{}, Holder{}, ErrInvalidRefreshToken
	}

	next, err := s.Open(ctx, cur.Holder)
	if err != nil {
		return Grant{}, Holder{}, err
	}
	return next, cur.Holder, nil
}

// Close ends a session. Closing an unknown session is not an error.
func (s *Store) Close(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session id is required")
	}
	return s.kv.Del(ctx, s.kv.AccessSessionKey(sessionID))
}

func (s *Store) Live(ctx context.Context, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, nil
	}
	_, err := s.kv.Get(ctx, s.kv.AccessSessionKey(sessionID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
