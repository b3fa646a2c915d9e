package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/localbiz-backend/internal/bootstrap"
	"github.com/angelmondragon/localbiz-backend/internal/notifications"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/idempotency"
)

func main() {
	rt := bootstrap.Start("worker")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	boot := context.Background()
	dbClient := rt.Postgres(boot)
	redisClient := rt.Redis(boot)
	pubsubClient := rt.PubSub(boot)

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	rt.Check("idempotency manager", err)

	handler, err := notifications.NewHandler(
		notifications.NewRepository(dbClient.DB()),
		metrics.NewNotificationMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	rt.Check("notification handler", err)

	consumer, err := notifications.NewConsumer(handler, pubsubClient.NotificationSubscription(), guard, logg)
	rt.Check("notification consumer", err)

	service, err := NewService(ServiceParams{
		Logger:               logg,
		DB:                   dbClient,
		Redis:                redisClient,
		PubSub:               pubsubClient,
		NotificationConsumer: consumer,
	})
	rt.Check("worker service", err)

	ctx, stop := rt.SignalContext(map[string]any{"subscription": cfg.PubSub.NotificationSubscription})
	defer stop()
	logg.Info(ctx, "worker starting")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("worker stopped", err)
	}
	logg.Info(ctx, "worker stopped")
}
