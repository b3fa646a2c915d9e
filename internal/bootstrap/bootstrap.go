// Package bootstrap holds the process wiring shared by every binary under
// cmd/: environment loading, config, logging, backing clients and shutdown.
package bootstrap

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/db"
	"github.com/angelmondragon/localbiz-backend/pkg/instance"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
	"github.com/angelmondragon/localbiz-backend/pkg/migrate"
	"github.com/angelmondragon/localbiz-backend/pkg/pubsub"
	"github.com/angelmondragon/localbiz-backend/pkg/redis"
)

type closer struct {
	name string
	c    io.Closer
}

// Runtime is a started process. Clients opened through it are closed in
// reverse order by Close, including on Fatal.
type Runtime struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
}

// Start loads .env and config and builds the configured logger for kind.
func Start(kind string) *Runtime {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Debug(context.Background(), "no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = kind

	return &Runtime{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
}

// Fatal logs err, closes everything opened so far and exits.
func (rt *Runtime) Fatal(msg string, err error) {
	rt.Logger.Error(context.Background(), msg, err)
	rt.Close()
	os.Exit(1)
}

// Check exits through Fatal when building what failed.
func (rt *Runtime) Check(what string, err error) {
	if err != nil {
		rt.Fatal("build "+what, err)
	}
}

func (rt *Runtime) track(name string, c io.Closer) {
	rt.closers = append(rt.closers, closer{name: name, c: c})
}

func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		cl := rt.closers[i]
		if err := cl.c.Close(); err != nil {
			rt.Logger.Error(context.Background(), "close "+cl.name, err)
		}
	}
	rt.closers = nil
}

// Postgres connects to the database and applies pending migrations in dev.
func (rt *Runtime) Postgres(ctx context.Context) *db.Client {
	client, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		rt.Fatal("connect database", err)
	}
	rt.track("database", client)
	if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, client); err != nil {
		rt.Fatal("dev migrations", err)
	}
	return client
}

func (rt *Runtime) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		rt.Fatal("connect redis", err)
	}
	rt.track("redis", client)
	return client
}

func (rt *Runtime) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	if err != nil {
		rt.Fatal("connect pubsub", err)
	}
	rt.track("pubsub", client)
	return client
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the standard
// process log fields plus extra.
func (rt *Runtime) SignalContext(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{
		"env":          rt.Config.App.Env,
		"service_kind": rt.Kind,
		"instance":     instance.GetID(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	return rt.Logger.WithFields(ctx, fields), stop
}
