package controllers

import (
	"net/http"

	"github.com/angelmondragon/localbiz-backend/api/middleware"
	"github.com/angelmondragon/localbiz-backend/api/responses"
	"github.com/angelmondragon/localbiz-backend/api/validators"
	"github.com/angelmondragon/localbiz-backend/internal/businesses"
	"github.com/angelmondragon/localbiz-backend/internal/review"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
)

type declineRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type pendingResponse struct {
	Items []businesses.BusinessDTO `json:"items"`
}

// AdminPendingBusinesses lists the review queue, oldest first.
func AdminPendingBusinesses(svc review.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}
		items, err := svc.ListPending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pendingResponse{Items: items})
	}
}

func AdminApproveBusiness(svc review.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}
		actor, err := reviewActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		businessID, err := pathUUID(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Approve(r.Context(), actor, businessID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminDeclineBusiness rejects a pending business. The reason is optional; the
// service trims it and enforces its length.
func AdminDeclineBusiness(svc review.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review service unavailable"))
			return
		}
		actor, err := reviewActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		businessID, err := pathUUID(r, "businessId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body declineRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Decline(r.Context(), actor, businessID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func reviewActor(r *http.Request) (review.Actor, error) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return review.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return review.Actor{UserID: id.UserID, Role: id.Role}, nil
}
