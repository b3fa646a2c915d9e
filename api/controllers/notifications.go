package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/api/responses"
	"github.com/angelmondragon/localbiz-backend/api/validators"
	"github.com/angelmondragon/localbiz-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/pagination"
)

// inboxAction handles one inbox request for an authenticated caller and
// returns the payload to wrap in the success envelope.
type inboxAction func(r *http.Request, svc notifications.Service, userID uuid.UUID) (any, error)

func inboxHandler(svc notifications.Service, logg *logger.Logger, act inboxAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload, err := act(r, svc, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

// ListNotifications pages through the caller's inbox, newest first.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, svc notifications.Service, userID uuid.UUID) (any, error) {
		q := validators.ReadQuery(r)
		params := notifications.ListParams{
			UserID:     userID,
			Limit:      q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit),
			Cursor:     q.Text("cursor", 0),
			UnreadOnly: q.Bool("unreadOnly"),
		}
		if err := q.Err(); err != nil {
			return nil, err
		}
		return svc.List(r.Context(), params)
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, svc notifications.Service, userID uuid.UUID) (any, error) {
		id, err := pathUUID(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), userID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(svc, logg, func(r *http.Request, svc notifications.Service, userID uuid.UUID) (any, error) {
		n, err := svc.MarkAllRead(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": n}, nil
	})
}
