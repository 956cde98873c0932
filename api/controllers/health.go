package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/showrunr/eventcrm-backend/api/responses"
	"github.com/showrunr/eventcrm-backend/pkg/config"
	pkgerrors "github.com/showrunr/eventcrm-backend/pkg/errors"
	"github.com/showrunr/eventcrm-backend/pkg/logger"
)

// Pinger is anything that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-EventCRM-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each named backend with a short deadline. Any failure
// makes the whole instance not ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-EventCRM-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		for name, pinger := range pingers {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				checks[name] = "down"
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable").WithDetails(checks))
				return
			}
			checks[name] = "up"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
