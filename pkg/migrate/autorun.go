package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/localbiz-backend/pkg/config"
	"github.com/angelmondragon/localbiz-backend/pkg/db"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
)

// skipReason explains why boot-time migration is off for cfg, or returns ""
// when it should run. Only dev opts in, and the SQL is Postgres-only.
func skipReason(cfg *config.Config) string {
	switch {
	case !cfg.App.IsDev():
		return "not dev"
	case !cfg.FeatureFlags.AutoMigrate:
		return "disabled"
	case cfg.FeatureFlags.UseSQLite, strings.EqualFold(cfg.DB.Driver, "sqlite"):
		return "sqlite"
	}
	return ""
}

// MaybeRunDev brings the schema up to date while a dev binary boots.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if reason := skipReason(cfg); reason != "" {
		if reason == "sqlite" {
			logg.Warn(ctx, "auto-migrate skipped for sqlite")
		}
		return nil
	}

	pool, err := client.SQL()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	m, err := New(pool, Embedded())
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	if err != nil {
		return err
	}
	versions := make([]int64, len(applied))
	for i, s := range applied {
		versions[i] = s.Version
	}
	logg.Info(logg.WithField(ctx, "versions", versions), "auto-migrate complete")
	return nil
}
