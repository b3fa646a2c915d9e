package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/internal/businesses"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/payloads"
)

// MaxReasonLength bounds the decline reason shown to owners.
const MaxReasonLength = 500

const (
	actionApprove = "approve"
	actionDecline = "decline"
)

type businessRepository interface {
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Business, error)
	ApplyReviewDecision(ctx context.Context, tx *gorm.DB, id uuid.UUID, decision businesses.ReviewDecision) (int64, error)
	ListByStatus(ctx context.Context, status enums.BusinessStatus) ([]models.Business, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor is the authenticated reviewer as resolved from the access token.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// Result is returned by approve and decline: the mutated row plus the
// reloaded pending list.
type Result struct {
	Business businesses.BusinessDTO   `json:"business"`
	Pending  []businesses.BusinessDTO `json:"pending"`
}

// Service drives the admin review panel.
type Service interface {
	ListPending(ctx context.Context) ([]businesses.BusinessDTO, error)
	Approve(ctx context.Context, actor Actor, businessID uuid.UUID) (*Result, error)
	Decline(ctx context.Context, actor Actor, businessID uuid.UUID, reason string) (*Result, error)
}

// ServiceParams bundles review dependencies. EmitEvents gates the
// business_status_changed outbox event.
type ServiceParams struct {
	Repo       businessRepository
	TxRunner   txRunner
	Outbox     outboxEmitter
	Metrics    *metrics.ReviewMetrics
	Logger     *logger.Logger
	EmitEvents bool
}

type service struct {
	repo       businessRepository
	tx         txRunner
	outbox     outboxEmitter
	metrics    *metrics.ReviewMetrics
	logg       *logger.Logger
	emitEvents bool
	now        func() time.Time
}

// NewService constructs the review service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("business repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.EmitEvents && params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       params.Repo,
		tx:         params.TxRunner,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       params.Logger,
		emitEvents: params.EmitEvents,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) ListPending(ctx context.Context) ([]businesses.BusinessDTO, error) {
	rows, err := s.repo.ListByStatus(ctx, enums.BusinessStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending businesses")
	}
	return businesses.FromModels(rows), nil
}

func (s *service) Approve(ctx context.Context, actor Actor, businessID uuid.UUID) (*Result, error) {
	return s.decide(ctx, actionApprove, actor, businessID, businesses.ReviewDecision{
		Status: enums.BusinessStatusActive,
	})
}

func (s *service) Decline(ctx context.Context, actor Actor, businessID uuid.UUID, reason string) (*Result, error) {
	trimmed := strings.TrimSpace(reason)
	if utf8.RuneCountInString(trimmed) > MaxReasonLength {
		s.metrics.Observe(actionDecline, "invalid")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reason must be at most %d characters", MaxReasonLength))
	}
	decision := businesses.ReviewDecision{Status: enums.BusinessStatusRejected}
	if trimmed != "" {
		decision.RejectionReason = &trimmed
	}
	return s.decide(ctx, actionDecline, actor, businessID, decision)
}

// decide mutates the single target row inside a transaction, then reloads the
// pending list as a separate step.
func (s *service) decide(ctx context.Context, action string, actor Actor, businessID uuid.UUID, decision businesses.ReviewDecision) (*Result, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if actor.Role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if businessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"business_id": businessID.String(),
		"user_id":     actor.UserID.String(),
		"actor_role":  string(actor.Role),
		"action":      action,
	})

	decision.ReviewedBy = actor.UserID
	decision.ReviewedAt = s.now()

	var updated *models.Business
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
		}
		if current.Status != enums.BusinessStatusPending {
			return pkgerrors.New(pkgerrors.CodeConflict, "business is no longer pending").
				WithDetails(map[string]any{"business_id": businessID, "status": current.Status})
		}

		rows, err := s.repo.ApplyReviewDecision(ctx, tx, businessID, decision)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update business status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "business is no longer pending").
				WithDetails(map[string]any{"business_id": businessID})
		}

		previous := current.Status
		current.Status = decision.Status
		current.RejectionReason = decision.RejectionReason
		current.ReviewedBy = &decision.ReviewedBy
		current.ReviewedAt = &decision.ReviewedAt
		current.UpdatedAt = decision.ReviewedAt
		updated = current

		if !s.emitEvents {
			return nil
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBusinessStatusChanged,
			AggregateType: enums.AggregateBusiness,
			AggregateID:   current.ID,
			Actor:         &outbox.Actor{UserID: actor.UserID, Role: actor.Role},
			OccurredAt:    decision.ReviewedAt,
			Data: payloads.BusinessStatusChangedEvent{
				BusinessID:      current.ID,
				OwnerID:         current.OwnerID,
				Name:            current.Name,
				Status:          current.Status,
				PreviousStatus:  previous,
				RejectionReason: current.RejectionReason,
				ReviewedBy:      current.ReviewedBy,
				ReviewedAt:      current.ReviewedAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue status event")
		}
		return nil
	})
	if err != nil {
		s.metrics.Observe(action, resultLabel(err))
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "review decision failed")
		return nil, err
	}
	s.metrics.Observe(action, "success")
	s.logg.Info(logCtx, "review decision applied")

	result := &Result{Business: *businesses.FromModel(updated)}
	pending, err := s.repo.ListByStatus(ctx, enums.BusinessStatusPending)
	if err != nil {
		s.logg.Error(logCtx, "reload pending businesses failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload pending businesses").
			WithDetails(map[string]any{"step": "reload", "business_id": businessID})
	}
	result.Pending = businesses.FromModels(pending)
	return result, nil
}

func resultLabel(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeConflict:
		return "conflict"
	case pkgerrors.CodeValidation:
		return "invalid"
	default:
		return "error"
	}
}
