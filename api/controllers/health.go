package controllers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/localbiz-backend/api/responses"
	"github.com/angelmondragon/localbiz-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/localbiz-backend/pkg/errors"
	"github.com/angelmondragon/localbiz-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe names one dependency checked by the readiness endpoint.
type Probe struct {
	Name string
	Dep  Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LocalBiz-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every probe in parallel. Any failure turns the whole
// response into a 503 whose details list each dependency that is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, probes []Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LocalBiz-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		errs := make([]error, len(probes))
		var wg sync.WaitGroup
		for i, p := range probes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := p.Dep.Ping(ctx); err != nil {
					errs[i] = fmt.Errorf("%s: %w", p.Name, err)
				}
			}()
		}
		wg.Wait()

		checks := make(map[string]string, len(probes))
		var down []string
		for i, p := range probes {
			if errs[i] != nil {
				checks[p.Name] = "down"
				down = append(down, p.Name)
				continue
			}
			checks[p.Name] = "ok"
		}
		if err := multierr.Combine(errs...); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependencies unavailable").
				WithDetails(map[string]any{"down": down, "checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
