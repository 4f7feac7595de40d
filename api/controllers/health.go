package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranalabs/kirana-backend/api/responses"
	"github.com/kiranalabs/kirana-backend/pkg/config"
	"github.com/kiranalabs/kirana-backend/pkg/db"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
	"github.com/kiranalabs/kirana-backend/pkg/logger"
	"github.com/kiranalabs/kirana-backend/pkg/redis"
)

const healthCheckTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Kirana-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies; a failure on either takes the
// instance out of rotation.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Kirana-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}

		if dbP == nil {
			checks["database"] = "unavailable"
		} else if err := dbP.Ping(ctx); err != nil {
			checks["database"] = "down"
		}
		if redisP == nil {
			checks["redis"] = "unavailable"
		} else if err := redisP.Ping(ctx); err != nil {
			checks["redis"] = "down"
		}

		for _, status := range checks {
			if status != "ok" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").WithDetails(checks))
				return
			}
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
