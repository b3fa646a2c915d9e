package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/localbiz-backend/internal/bootstrap"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox/registry"
)

func main() {
	listDead := flag.Int("dead", 0, "print up to n dead-lettered events and exit")
	requeue := flag.String("requeue", "", "return a dead-lettered event id to pending and exit")
	flag.Parse()

	rt := bootstrap.Start("outbox-publisher")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	boot := context.Background()
	dbClient := rt.Postgres(boot)
	store := outbox.NewStore(dbClient.DB())

	switch {
	case *requeue != "":
		id, err := uuid.Parse(*requeue)
		rt.Check("event id", err)
		rt.Check("requeue", store.Requeue(boot, id))
		logg.Info(logg.WithEventID(boot, id.String()), "dead-lettered event requeued")
		return
	case *listDead > 0:
		rows, err := store.DeadLetters(boot, *listDead)
		rt.Check("list dead letters", err)
		for _, row := range rows {
			reason := ""
			if row.DeadReason != nil {
				reason = string(*row.DeadReason)
			}
			lastErr := ""
			if row.LastError != nil {
				lastErr = *row.LastError
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%d\t%s\n", row.ID, row.EventType, reason, row.Attempts, lastErr)
		}
		return
	}

	pubsubClient := rt.PubSub(boot)
	events, err := registry.New(cfg.PubSub)
	rt.Check("event registry", err)
	for _, topic := range events.Topics() {
		rt.Check("topic "+topic, pubsubClient.TopicExists(boot, topic))
	}

	publishers := newPublisherCache(pubsubClient.Publisher)
	defer publishers.Close()

	service, err := NewService(ServiceParams{
		Config:    cfg.Outbox,
		Logger:    logg,
		DB:        dbClient,
		Ping:      pubsubClient.Ping,
		Store:     store,
		Registry:  events,
		Publisher: publishers.get,
		Metrics:   metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	rt.Check("outbox publisher", err)

	ctx, stop := rt.SignalContext(map[string]any{"topics": events.Topics()})
	defer stop()
	logg.Info(ctx, "outbox publisher starting")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("outbox publisher stopped", err)
	}
	logg.Info(ctx, "outbox publisher stopped")
}
