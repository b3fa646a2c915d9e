// Package auth mints and verifies the HS256 access tokens the API accepts.
// The token subject is the user id and the jti names the refresh session
// the token was issued under.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

var method = jwt.SigningMethodHS256

var ErrMalformedClaims = errors.New("auth: malformed claims")

// Claims is the payload of an access token. Role is what admin routes check.
type Claims struct {
	Role enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the caller a verified token describes.
type Principal struct {
	UserID    uuid.UUID
	Role      enums.Role
	SessionID string
}

func (c *Claims) principal() (Principal, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil {
		return Principal{}, fmt.Errorf("%w: subject %q", ErrMalformedClaims, c.Subject)
	}
	if !c.Role.IsValid() {
		return Principal{}, fmt.Errorf("%w: role %q", ErrMalformedClaims, c.Role)
	}
	if strings.TrimSpace(c.ID) == "" {
		return Principal{}, fmt.Errorf("%w: missing jti", ErrMalformedClaims)
	}
	return Principal{UserID: id, Role: c.Role, SessionID: c.ID}, nil
}

// Issuer signs and checks tokens for one secret and issuer name.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(cfg config.JWTConfig) (*Issuer, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Issuer{
		secret: []byte(cfg.Secret),
		name:   cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		now:    time.Now,
	}, nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// Mint signs a token for p and returns it with its expiry.
func (i *Issuer) Mint(p Principal) (string, time.Time, error) {
	now := i.now().UTC()
	claims := Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   p.UserID.String(),
			ID:        p.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	if _, err := claims.principal(); err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, issuer and expiry.
func (i *Issuer) Verify(raw string) (Principal, error) {
	return i.parse(raw, jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))
}

// Inspect checks signature and issuer but accepts an expired token. Refresh
// and logout use it to learn which session an old token belonged to.
func (i *Issuer) Inspect(raw string) (Principal, error) {
	return i.parse(raw, jwt.WithoutClaimsValidation())
}

func (i *Issuer) parse(raw string, opts ...jwt.ParserOption) (Principal, error) {
	opts = append(opts, jwt.WithValidMethods([]string{method.Alg()}))
	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return Principal{}, err
	}
	// WithoutClaimsValidation also drops the issuer check.
	if claims.Issuer != i.name {
		return Principal{}, fmt.Errorf("%w: issuer %q", ErrMalformedClaims, claims.Issuer)
	}
	return claims.principal()
}
