package controllers

import (
	"net/http"

	"github.com/angelmondragon/localbiz-backend/api/responses"
	"github.com/angelmondragon/localbiz-backend/api/validators"
	"github.com/angelmondragon/localbiz-backend/internal/businesses"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/pagination"
)

const maxSearchTermLen = 100

// BusinessStatusPage renders the owner's status view. A missing business is
// the no_business view, not an error.
func BusinessStatusPage(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}
		ownerID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.StatusPage(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func GetMyBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}
		ownerID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		business, err := svc.GetMine(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, business)
	}
}

// RegisterBusiness submits the caller's business for review, or resubmits a
// rejected one.
func RegisterBusiness(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}
		ownerID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body businesses.RegisterInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		business, err := svc.Register(r.Context(), ownerID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, business)
	}
}

// SearchBusinesses lists active businesses for the public directory.
func SearchBusinesses(svc businesses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "businesses service unavailable"))
			return
		}

		q := validators.ReadQuery(r)
		params := businesses.SearchParams{
			Text:     q.Text("q", maxSearchTermLen),
			Category: q.Text("category", maxSearchTermLen),
			City:     q.Text("city", maxSearchTermLen),
			Params: pagination.Params{
				Limit:  q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit),
				Cursor: q.Text("cursor", 0),
			},
		}
		if err := q.Err(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Search(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
