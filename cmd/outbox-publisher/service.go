package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/db/models"
	"github.com/angelmondragon/localbiz-backend/pkg/enums"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	// idleBackoffCap bounds the wait after a failed batch.
	idleBackoffCap = 10 * time.Second
	idleJitter     = 250 * time.Millisecond
)

type database interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type store interface {
	ClaimDueTx(tx *gorm.DB, now time.Time, limit int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RetryTx(tx *gorm.DB, id uuid.UUID, cause error, next time.Time) error
	BuryTx(tx *gorm.DB, id uuid.UUID, reason enums.OutboxDeadReason, cause error, at time.Time) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       database
	Ping     func(context.Context) error
	Store    store
	Registry resolver
	// Publisher returns the publisher for a topic; nil means the topic is
	// not configured and the row is dead-lettered.
	Publisher func(topic string) publisher
	Metrics   *metrics.OutboxMetrics
}

// Service drains due outbox rows to Pub/Sub. A batch is claimed and settled
// inside one transaction so its row locks outlive every publish.
type Service struct {
	logg      *logger.Logger
	db        database
	ping      func(context.Context) error
	store     store
	registry  resolver
	publisher func(string) publisher
	metrics   *metrics.OutboxMetrics

	batchSize   int
	maxAttempts int
	poll        time.Duration
	retryBase   time.Duration
	retryCap    time.Duration
	now         func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	case p.Publisher == nil:
		return nil, errors.New("publisher factory is required")
	}
	ping := p.Ping
	if ping == nil {
		ping = func(context.Context) error { return nil }
	}
	return &Service{
		logg:        p.Logger,
		db:          p.DB,
		ping:        ping,
		store:       p.Store,
		registry:    p.Registry,
		publisher:   p.Publisher,
		metrics:     p.Metrics,
		batchSize:   positive(p.Config.BatchSize, 50),
		maxAttempts: positive(p.Config.MaxAttempts, 10),
		poll:        time.Duration(positive(p.Config.PollIntervalMS, 500)) * time.Millisecond,
		retryBase:   positive(p.Config.RetryBase, 5*time.Second),
		retryCap:    positive(p.Config.RetryCap, 10*time.Minute),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func positive[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is done. Failed batches back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	backoff := s.idleBackoff()
	for {
		busy, err := s.drain(ctx)
		wait := s.poll
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait, _ = backoff.Next()
		case busy:
			backoff = s.idleBackoff()
			continue
		default:
			backoff = s.idleBackoff()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) idleBackoff() retry.Backoff {
	return retry.WithJitter(idleJitter, retry.WithCappedDuration(idleBackoffCap, retry.NewExponential(s.poll)))
}

// retryDelay is how long a row waits after its nth failed attempt:
// retryBase doubled per attempt, capped at retryCap.
func (s *Service) retryDelay(attempt int) time.Duration {
	b := retry.WithCappedDuration(s.retryCap, retry.NewExponential(s.retryBase))
	d := s.retryBase
	for i := 0; i < attempt; i++ {
		d, _ = b.Next()
	}
	return d
}

// drain handles one batch and reports whether it found any rows.
func (s *Service) drain(ctx context.Context) (bool, error) {
	var found bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.store.ClaimDueTx(tx, s.now(), s.batchSize)
		if err != nil {
			return fmt.Errorf("claim due events: %w", err)
		}
		found = len(rows) > 0
		for _, row := range rows {
			if err := s.handle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}

// handle publishes row and records the outcome. Only bookkeeping failures
// are returned.
func (s *Service) handle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	fields := map[string]any{
		logger.FieldEventID: row.ID.String(),
		"event_type":        row.EventType,
		"aggregate_id":      row.AggregateID.String(),
		"attempt":           row.Attempts + 1,
	}
	resolved, err := s.registry.Resolve(row)
	if err != nil {
		return s.bury(ctx, tx, row, enums.DeadReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Topic

	pubErr := s.publish(ctx, row, resolved)
	switch {
	case pubErr == nil:
		if err := s.store.MarkPublishedTx(tx, row.ID, s.now()); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		s.metrics.IncPublished(string(row.EventType))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	case registry.IsPermanent(pubErr):
		return s.bury(ctx, tx, row, enums.DeadReasonNonRetryable, pubErr, fields)
	case row.Attempts+1 >= s.maxAttempts:
		return s.bury(ctx, tx, row, enums.DeadReasonMaxAttempts, pubErr, fields)
	}

	next := s.now().Add(s.retryDelay(row.Attempts + 1))
	if err := s.store.RetryTx(tx, row.ID, pubErr, next); err != nil {
		return fmt.Errorf("reschedule %s: %w", row.ID, err)
	}
	fields["error"] = pubErr.Error()
	fields["next_attempt_at"] = next
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
	s.metrics.IncRetried(string(row.EventType))
	return nil
}

func (s *Service) bury(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDeadReason, cause error, fields map[string]any) error {
	if err := s.store.BuryTx(tx, row.ID, reason, cause, s.now()); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	fields["dead_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")
	s.metrics.IncDeadLettered(string(row.EventType), string(reason))
	return nil
}

func (s *Service) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.Resolved) error {
	pub := s.publisher(resolved.Topic)
	if pub == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %s", resolved.Topic))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := pub.Publish(ctx, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.EventID.String(),
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
		},
	})
	_, err := result.Get(ctx)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// topicPublisher adapts *pubsub.Publisher, whose Publish returns a concrete
// *PublishResult, to the publisher interface.
type topicPublisher struct{ p *gcppubsub.Publisher }

func (t topicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.p.Publish(ctx, msg)
}

// publisherCache hands out one publisher per topic and stops them all on Close.
type publisherCache struct {
	open  func(string) *gcppubsub.Publisher
	byKey map[string]*gcppubsub.Publisher
}

func newPublisherCache(open func(string) *gcppubsub.Publisher) *publisherCache {
	return &publisherCache{open: open, byKey: map[string]*gcppubsub.Publisher{}}
}

func (c *publisherCache) get(topic string) publisher {
	p, ok := c.byKey[topic]
	if !ok {
		if p = c.open(topic); p == nil {
			return nil
		}
		c.byKey[topic] = p
	}
	return topicPublisher{p: p}
}

func (c *publisherCache) Close() {
	for _, p := range c.byKey {
		p.Stop()
	}
}
