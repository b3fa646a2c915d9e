package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
)

type notificationPruner interface {
	PurgeRead(ctx context.Context, cutoff time.Time) (int64, error)
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationPruner
	Metrics    *metrics.JobMetrics
	// ReadRetention applies to read notifications, Retention to all of them.
	ReadRetention time.Duration
	Retention     time.Duration
}

type notificationCleanupJob struct {
	logg          *logger.Logger
	repo          notificationPruner
	metrics       *metrics.JobMetrics
	readRetention time.Duration
	retention     time.Duration
	now           func() time.Time
}

func NewNotificationCleanupJob(p NotificationCleanupJobParams) (Job, error) {
	if p.Logger == nil || p.Repository == nil {
		return nil, errors.New("notification cleanup: logger and repository are required")
	}
	return &notificationCleanupJob{
		logg:          p.Logger,
		repo:          p.Repository,
		metrics:       p.Metrics,
		readRetention: orDefault(p.ReadRetention, 30*24*time.Hour),
		retention:     orDefault(p.Retention, 90*24*time.Hour),
		now:           time.Now,
	}, nil
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

// Run attempts both deletes even when the first fails.
func (j *notificationCleanupJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	read, readErr := j.repo.PurgeRead(ctx, now.Add(-j.readRetention))
	if readErr != nil {
		readErr = fmt.Errorf("delete read notifications: %w", readErr)
	}
	expired, expErr := j.repo.Purge(ctx, now.Add(-j.retention))
	if expErr != nil {
		expErr = fmt.Errorf("delete expired notifications: %w", expErr)
	}
	j.metrics.Deleted(j.Name(), "notifications", read+expired)
	if err := multierr.Combine(readErr, expErr); err != nil {
		return err
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"read_deleted":    read,
		"expired_deleted": expired,
	}), "notification cleanup complete")
	return nil
}
