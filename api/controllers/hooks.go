package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/localbiz-backend/api/responses"
	"github.com/angelmondragon/localbiz-backend/internal/notifications"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/security"
)

const (
	hookSecretHeader = "X-Hook-Secret"
	maxHookBodyBytes = 1 << 20
)

type statusChangeHandler interface {
	HandleStatusChange(ctx context.Context, change notifications.StatusChange) (*models.Notification, error)
}

// BusinessStatusHook receives database change events for the businesses table.
// It answers with a bare status code: 200 when handled (including statuses that
// produce no notification) and 500 on any failure.
func BusinessStatusHook(handler statusChangeHandler, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if handler == nil {
			responses.WriteStatus(w, http.StatusInternalServerError)
			return
		}
		if secret != "" && !security.SecretsEqual(r.Header.Get(hookSecretHeader), secret) {
			if logg != nil {
				logg.Warn(ctx, "hook.business_status.bad_secret")
			}
			responses.WriteStatus(w, http.StatusInternalServerError)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBodyBytes))
		if err != nil {
			logHookError(ctx, logg, "read hook body", err)
			responses.WriteStatus(w, http.StatusInternalServerError)
			return
		}

		change, err := notifications.ParseHookPayload(body)
		if err != nil {
			logHookError(ctx, logg, "parse hook payload", err)
			responses.WriteStatus(w, http.StatusInternalServerError)
			return
		}

		if logg != nil {
			ctx = logg.WithBusinessID(ctx, change.BusinessID.String())
		}
		if _, err := handler.HandleStatusChange(ctx, change); err != nil {
			logHookError(ctx, logg, "handle business status change", err)
			responses.WriteStatus(w, http.StatusInternalServerError)
			return
		}
		responses.WriteStatus(w, http.StatusOK)
	}
}

func logHookError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
