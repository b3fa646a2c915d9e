package businesses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/pkg/db"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/localbiz-backend/pkg/pagination"
)

type businessRepository interface {
	FindByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (*models.Business, error)
	Create(ctx context.Context, tx *gorm.DB, business *models.Business) error
	Resubmit(ctx context.Context, tx *gorm.DB, business *models.Business) (int64, error)
	Search(ctx context.Context, q SearchQuery) ([]models.Business, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes the owner-facing business operations and the public directory.
type Service interface {
	StatusPage(ctx context.Context, ownerID uuid.UUID) (*StatusView, error)
	GetMine(ctx context.Context, ownerID uuid.UUID) (*BusinessDTO, error)
	Register(ctx context.Context, ownerID uuid.UUID, input RegisterInput) (*BusinessDTO, error)
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
}

// SearchParams is the raw directory query as received from the API.
type SearchParams struct {
	Text     string
	Category string
	City     string
	pagination.Params
}

// SearchResult is one page of directory results.
type SearchResult struct {
	Items  []BusinessDTO `json:"items"`
	Cursor string        `json:"cursor"`
}

// ServiceParams bundles the business service dependencies.
type ServiceParams struct {
	Repo     businessRepository
	TxRunner txRunner
	Outbox   outboxEmitter
	Logger   *logger.Logger
}

type service struct {
	repo   businessRepository
	tx     txRunner
	outbox outboxEmitter
	logg   *logger.Logger
}

// NewService constructs the business service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("business repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.TxRunner,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

// StatusPage resolves the owner's status view. A missing business is the
// no_business state; a failed lookup is a dependency error carrying the
// error view as details.
func (s *service) StatusPage(ctx context.Context, ownerID uuid.UUID) (*StatusView, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	business, err := s.repo.FindByOwner(ctx, nil, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			view := BuildStatusView(nil)
			return &view, nil
		}
		s.logg.Error(s.logg.WithUserID(ctx, ownerID.String()), "business status lookup failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business status").WithDetails(ErrorView())
	}

	view := BuildStatusView(business)
	return &view, nil
}

func (s *service) GetMine(ctx context.Context, ownerID uuid.UUID) (*BusinessDTO, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	business, err := s.repo.FindByOwner(ctx, nil, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
	}
	return FromModel(business), nil
}

// Register creates the owner's business in pending, or resubmits it when the
// existing one was rejected. Both paths emit business_submitted in the same
// transaction.
func (s *service) Register(ctx context.Context, ownerID uuid.UUID, input RegisterInput) (*BusinessDTO, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	input = input.normalized()
	if field := input.missingField(); field != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
	}

	var (
		saved        *models.Business
		resubmission bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.FindByOwner(ctx, tx, ownerID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			business := &models.Business{OwnerID: ownerID, Status: enums.BusinessStatusPending}
			input.apply(business)
			if err := s.repo.Create(ctx, tx, business); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "business already registered")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create business")
			}
			saved = business
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
		case existing.Status != enums.BusinessStatusRejected:
			return pkgerrors.New(pkgerrors.CodeConflict, "business already registered").
				WithDetails(map[string]any{"status": existing.Status})
		default:
			input.apply(existing)
			rows, err := s.repo.Resubmit(ctx, tx, existing)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resubmit business")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "business is no longer rejected")
			}
			saved = existing
			resubmission = true
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBusinessSubmitted,
			AggregateType: enums.AggregateBusiness,
			AggregateID:   saved.ID,
			Actor:         &outbox.Actor{UserID: ownerID, Role: enums.RoleOwner},
			Data: payloads.BusinessSubmittedEvent{
				BusinessID:   saved.ID,
				OwnerID:      ownerID,
				Name:         saved.Name,
				Resubmission: resubmission,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register business")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"business_id":  saved.ID.String(),
		"user_id":      ownerID.String(),
		"resubmission": resubmission,
	})
	s.logg.Info(logCtx, "business submitted for review")
	return FromModel(saved), nil
}

func (s *service) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.Search(ctx, SearchQuery{
		Text:     params.Text,
		Category: params.Category,
		City:     params.City,
		Limit:    params.Limit,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search businesses")
	}

	page, next := pagination.Trim(rows, params.Limit, func(b models.Business) pagination.Cursor {
		return pagination.Cursor{CreatedAt: b.CreatedAt, ID: b.ID}
	})
	return &SearchResult{Items: FromModels(page), Cursor: next}, nil
}
