package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/localbiz-backend/api/routes"
	"github.com/angelmondragon/localbiz-backend/internal/auth"
	"github.com/angelmondragon/localbiz-backend/internal/bootstrap"
	"github.com/angelmondragon/localbiz-backend/internal/businesses"
	"github.com/angelmondragon/localbiz-backend/internal/notifications"
	"github.com/angelmondragon/localbiz-backend/internal/review"
	"github.com/angelmondragon/localbiz-backend/internal/users"
	pkgAuth "github.com/angelmondragon/localbiz-backend/pkg/auth"
	"github.com/angelmondragon/localbiz-backend/pkg/auth/session"
	"github.com/angelmondragon/localbiz-backend/pkg/env"
	"github.com/angelmondragon/localbiz-backend/pkg/metrics"
	"github.com/angelmondragon/localbiz-backend/pkg/outbox"
	"github.com/angelmondragon/localbiz-backend/pkg/security"
)

const shutdownTimeout = 20 * time.Second

func main() {
	rt := bootstrap.Start("api")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	boot := context.Background()
	dbClient := rt.Postgres(boot)
	redisClient := rt.Redis(boot)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tokens, err := pkgAuth.NewIssuer(cfg.JWT)
	rt.Check("token issuer", err)
	sessions, err := session.NewStore(redisClient, cfg.JWT)
	rt.Check("session store", err)

	authService, err := auth.NewService(auth.ServiceParams{
		Users:    users.NewRepository(dbClient.DB()),
		Sessions: sessions,
		Tokens:   tokens,
		Hasher:   security.NewHasher(cfg.Password),
		Logger:   logg,
	})
	rt.Check("auth service", err)

	businessRepo := businesses.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewStore(dbClient.DB()), logg)

	businessService, err := businesses.NewService(businesses.ServiceParams{
		Repo:     businessRepo,
		TxRunner: dbClient,
		Outbox:   outboxService,
		Logger:   logg,
	})
	rt.Check("business service", err)

	reviewService, err := review.NewService(review.ServiceParams{
		Repo:       businessRepo,
		TxRunner:   dbClient,
		Outbox:     outboxService,
		Metrics:    metrics.NewReviewMetrics(registry),
		Logger:     logg,
		EmitEvents: cfg.FeatureFlags.StatusEvents,
	})
	rt.Check("review service", err)

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	notificationsService, err := notifications.NewService(notificationsRepo)
	rt.Check("notifications service", err)
	statusHook, err := notifications.NewHandler(notificationsRepo, metrics.NewNotificationMetrics(registry), logg)
	rt.Check("status hook handler", err)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			tokens,
			sessions,
			authService,
			businessService,
			reviewService,
			notificationsService,
			statusHook,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := rt.SignalContext(map[string]any{"addr": addr})
	defer stop()
	logg.Info(ctx, "api server starting")

	served := make(chan error, 1)
	go func() { served <- server.ListenAndServe() }()

	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			rt.Fatal("api server stopped", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown", err)
		}
	}
}
