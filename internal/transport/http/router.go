package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"checkout/pkg/platform/httputil"
	"checkout/pkg/platform/middleware/metadata"
	"checkout/pkg/platform/middleware/request"
	"checkout/pkg/platform/middleware/requesttime"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig carries what NewRouter mounts besides the handler.
type RouterConfig struct {
	Metrics http.Handler
	// Checks are run by /healthz; nil entries are skipped.
	Checks map[string]HealthChecker
	// Links serves QR link verification when set.
	Links *LinkHandler
}

// NewRouter mounts the handler behind the shared middleware chain.
func NewRouter(h *Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(logger))

	r.Get("/healthz", healthz(cfg.Checks))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	h.Register(r)
	if cfg.Links != nil {
		cfg.Links.Register(r)
	}
	return r
}

func healthz(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				status[name] = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		overall := "ok"
		if code != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, code, map[string]any{"status": overall, "checks": status})
	}
}
