package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/localbiz-backend/api/middleware"
	"github.com/angelmondragon/localbiz-backend/api/responses"
	"github.com/angelmondragon/localbiz-backend/api/validators"
	"github.com/angelmondragon/localbiz-backend/internal/auth"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
)

type authenticator interface {
	Login(ctx context.Context, role enums.Role, in auth.Credentials) (*auth.Grant, error)
	Register(ctx context.Context, role enums.Role, in auth.Signup) (*auth.Grant, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.Grant, error)
	Logout(ctx context.Context, accessToken string) error
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthLogin serves both login doors; role decides which accounts may pass.
func AuthLogin(svc authenticator, role enums.Role, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.Credentials
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		grant, err := svc.Login(r.Context(), role, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, grant)
	}
}

// AuthRegister creates an account with role and answers 201 with a signed-in
// grant.
func AuthRegister(svc authenticator, role enums.Role, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.Signup
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		grant, err := svc.Register(r.Context(), role, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, grant)
	}
}

// AuthRefresh expects the old access token in Authorization, expired or not.
func AuthRefresh(svc authenticator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		access := middleware.BearerToken(r)
		if access == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		var body refreshBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		grant, err := svc.Refresh(r.Context(), access, body.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, grant)
	}
}

func AuthLogout(svc authenticator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
