package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/willy-peters/SmartPOS/api/responses"
	"github.com/willy-peters/SmartPOS/pkg/config"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// Healthz reports process liveness plus the state of the datastore and the
// session store. Any failing dependency turns the response into a 503 so
// load balancers stop routing to this instance.
func Healthz(cfg *config.Config, logg *logger.Logger, db pinger, redis pinger) http.HandlerFunc {
	deps := map[string]pinger{
		"database": db,
		"redis":    redis,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "health.check_failed", err)
				}
				continue
			}
			checks[name] = "up"
		}

		w.Header().Set("X-SmartPOS-Env", cfg.App.Env)
		if !healthy {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status": "ok",
			"checks": checks,
		})
	}
}
