package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
)

type outboxPruner interface {
	Prune(ctx context.Context, state enums.OutboxState, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger  *logger.Logger
	Outbox  outboxPruner
	Metrics *metrics.JobMetrics
	// Published and Dead are how long settled rows are kept. Dead rows are
	// kept longer so operators can requeue them.
	Published time.Duration
	Dead      time.Duration
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	outbox    outboxPruner
	metrics   *metrics.JobMetrics
	retention map[enums.OutboxState]time.Duration
	now       func() time.Time
}

func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	if p.Logger == nil || p.Outbox == nil {
		return nil, errors.New("outbox retention: logger and store are required")
	}
	return &outboxRetentionJob{
		logg:    p.Logger,
		outbox:  p.Outbox,
		metrics: p.Metrics,
		retention: map[enums.OutboxState]time.Duration{
			enums.OutboxStatePublished: orDefault(p.Published, 14*24*time.Hour),
			enums.OutboxStateDead:      orDefault(p.Dead, 30*24*time.Hour),
		},
		now: time.Now,
	}, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	fields := map[string]any{}
	var errs error
	for _, state := range []enums.OutboxState{enums.OutboxStatePublished, enums.OutboxStateDead} {
		n, err := j.outbox.Prune(ctx, state, now.Add(-j.retention[state]))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prune %s outbox events: %w", state, err))
			continue
		}
		j.metrics.Deleted(j.Name(), "outbox_events_"+string(state), n)
		fields[string(state)+"_deleted"] = n
	}
	if errs != nil {
		return errs
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention complete")
	return nil
}
