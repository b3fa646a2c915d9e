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

const defaultInterval = time.Hour

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Lock     Locker
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// JobTimeout bounds each job. Zero leaves jobs bounded only by ctx.
	JobTimeout time.Duration
}

// Service runs every job once per interval while holding the cluster lock.
type Service struct {
	logg       *logger.Logger
	jobs       []Job
	lock       Locker
	metrics    *metrics.JobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("cron: logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("cron: lock required")
	}
	jobs := make([]Job, 0, len(params.Jobs))
	seen := make(map[string]struct{}, len(params.Jobs))
	for _, job := range params.Jobs {
		if job == nil {
			continue
		}
		if _, dup := seen[job.Name()]; dup {
			return nil, fmt.Errorf("cron: duplicate job %q", job.Name())
		}
		seen[job.Name()] = struct{}{}
		jobs = append(jobs, job)
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:       params.Logger,
		jobs:       jobs,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: params.JobTimeout,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes every job in order if this instance wins the lock. Job
// failures are collected and do not stop later jobs.
func (s *Service) RunOnce(ctx context.Context) error {
	unlock, won, err := s.lock.TryLock(ctx)
	if err != nil {
		return err
	}
	if !won {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		// release even if ctx was canceled mid-cycle
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron unlock failed", err)
		}
	}()

	var errs error
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	started := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(started)
	s.metrics.Ran(name, elapsed, err)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(ctx, "cron job finished")
	return nil
}
