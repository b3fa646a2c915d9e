package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/enums"
)

// Identity is the caller resolved from a verified access token.
type Identity struct {
	UserID    uuid.UUID
	Role      enums.Role
	SessionID string
}

type identityKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext reports the authenticated caller, if Auth ran.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != uuid.Nil
}
