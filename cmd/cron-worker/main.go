package main

import (
	"context"
	"errors"
	"flag"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/localbiz-backend/internal/bootstrap"
	"github.com/angelmondragon/localbiz-backend/internal/cron"
	"github.com/angelmondragon/localbiz-backend/internal/notifications"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	rt := bootstrap.Start("cron-worker")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	boot := context.Background()
	dbClient := rt.Postgres(boot)
	redisClient := rt.Redis(boot)

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.LockTTL)
	rt.Check("cron lock", err)

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:        logg,
		Repository:    notifications.NewRepository(dbClient.DB()),
		Metrics:       jobMetrics,
		ReadRetention: cfg.Cron.NotificationReadRetention,
		Retention:     cfg.Cron.NotificationRetention,
	})
	rt.Check("notification cleanup job", err)

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		Outbox:    outbox.NewStore(dbClient.DB()),
		Metrics:   jobMetrics,
		Published: cfg.Cron.OutboxRetention,
		Dead:      cfg.Cron.OutboxDeadRetention,
	})
	rt.Check("outbox retention job", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Jobs:       []cron.Job{notificationCleanup, outboxRetention},
		Lock:       lock,
		Metrics:    jobMetrics,
		Interval:   cfg.Cron.Interval,
		JobTimeout: lock.TTL(),
	})
	rt.Check("cron service", err)

	ctx, stop := rt.SignalContext(map[string]any{"interval": cfg.Cron.Interval.String()})
	defer stop()

	if *once {
		logg.Info(ctx, "cron single cycle")
		if err := service.RunOnce(ctx); err != nil {
			rt.Fatal("cron cycle", err)
		}
		return
	}

	logg.Info(ctx, "cron worker starting")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("cron worker stopped", err)
	}
	logg.Info(ctx, "cron worker stopped")
}
