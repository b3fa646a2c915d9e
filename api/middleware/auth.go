package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/localbiz-backend/api/responses"
	pkgAuth "github.com/angelmondragon/localbiz-backend/pkg/auth"
	"github.com/angelmondragon/localbiz-backend/pkg/auth/session"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
)

type tokenVerifier interface {
	Verify(raw string) (pkgAuth.Principal, error)
}

// Auth requires a bearer access token whose session is still live and
// stores the resulting Identity on the request context.
func Auth(tokens tokenVerifier, sessions session.Checker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := BearerToken(r)
			if raw == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			p, err := tokens.Verify(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if sessions != nil {
				live, err := sessions.Live(ctx, p.SessionID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !live {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx = WithIdentity(ctx, Identity{UserID: p.UserID, Role: p.Role, SessionID: p.SessionID})
			if logg != nil {
				ctx = logg.WithUserID(ctx, p.UserID.String())
				ctx = logg.WithActorRole(ctx, string(p.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header. A bare token
// without the scheme is accepted.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return raw
}

// RequireRole admits only callers whose Identity carries one of roles.
// It must run after Auth.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required").
				WithDetails(map[string]any{"role": string(id.Role)}))
		})
	}
}
