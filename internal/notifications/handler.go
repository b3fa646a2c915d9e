package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/localbiz-backend/pkg/db/types"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
)

// DefaultRejectionReason is embedded when a business is rejected without a reason.
const DefaultRejectionReason = "No reason provided"

// Delivery sources, used as metric labels.
const (
	SourceHook   = "hook"
	SourcePubSub = "pubsub"
)

// StatusChange is the post-update business row relevant to notifications.
type StatusChange struct {
	BusinessID      uuid.UUID
	OwnerID         uuid.UUID
	Name            string
	Status          enums.BusinessStatus
	RejectionReason *string
	Source          string
}

type notificationCreator interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// Handler turns business status changes into owner notifications. It does not
// deduplicate; callers that need at-most-once delivery guard it themselves.
type Handler struct {
	repo    notificationCreator
	metrics *metrics.NotificationMetrics
	logg    *logger.Logger
}

// NewHandler builds a status change handler.
func NewHandler(repo notificationCreator, m *metrics.NotificationMetrics, logg *logger.Logger) (*Handler, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Handler{repo: repo, metrics: m, logg: logg}, nil
}

// HandleStatusChange inserts one notification for active or rejected rows and
// returns it. Other statuses are a no-op with a nil notification.
func (h *Handler) HandleStatusChange(ctx context.Context, change StatusChange) (*models.Notification, error) {
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"business_id": change.BusinessID.String(),
		"user_id":     change.OwnerID.String(),
		"status":      string(change.Status),
		"source":      change.Source,
	})

	notification, err := BuildNotification(change)
	if err != nil {
		h.metrics.IncFailed(change.Source)
		return nil, err
	}
	if notification == nil {
		h.logg.Info(logCtx, "status not handled")
		return nil, nil
	}

	if err := h.repo.Insert(ctx, notification); err != nil {
		h.metrics.IncFailed(change.Source)
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	h.metrics.IncCreated(change.Source, string(change.Status))
	h.logg.Info(h.logg.WithField(logCtx, "notification_id", notification.ID.String()), "owner notified of status change")
	return notification, nil
}

// BuildNotification renders the notification for change, or nil when the
// status does not notify.
func BuildNotification(change StatusChange) (*models.Notification, error) {
	var (
		title   string
		message string
		data    = map[string]any{"business_id": change.BusinessID.String()}
	)
	switch change.Status {
	case enums.BusinessStatusActive:
		title = "Business approved"
		message = fmt.Sprintf("Your business \"%s\" has been approved and is now live.", change.Name)
	case enums.BusinessStatusRejected:
		reason := DefaultRejectionReason
		if change.RejectionReason != nil && strings.TrimSpace(*change.RejectionReason) != "" {
			reason = strings.TrimSpace(*change.RejectionReason)
		}
		title = "Business needs changes"
		message = fmt.Sprintf("Your business \"%s\" was not approved. Reason: %s", change.Name, reason)
		data["reason"] = reason
	default:
		return nil, nil
	}

	if change.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("owner id missing")
	}
	payload, err := dbtypes.NewJSONB(data)
	if err != nil {
		return nil, fmt.Errorf("encode notification data: %w", err)
	}
	return &models.Notification{
		ID:      uuid.New(),
		UserID:  change.OwnerID,
		Type:    enums.NotificationTypeSystemAnnouncement,
		Title:   title,
		Message: message,
		Data:    payload,
		IsRead:  false,
	}, nil
}
