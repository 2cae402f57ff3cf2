package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"remitflow/internal/platform/metrics"
	"remitflow/internal/platform/middleware"
	"remitflow/pkg/platform/httputil"
	"remitflow/pkg/platform/middleware/metadata"
	"remitflow/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config carries the router's cross-cutting settings.
type Config struct {
	AllowedOrigins []string
	Checks         map[string]HealthCheck
	HealthTimeout  time.Duration
}

// NewRouter builds the chi router with the shared middleware chain, the
// operational endpoints and every feature handler.
func NewRouter(cfg Config, logger *slog.Logger, m *metrics.Metrics, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger, m))
	r.Use(middleware.Latency(m))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthz(cfg, logger))

	for _, h := range handlers {
		h.Register(r)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", middleware.RequestIDHeader, "Idempotency-Key"},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler(r)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(cfg Config, logger *slog.Logger) http.HandlerFunc {
	timeout := cfg.HealthTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, check := range cfg.Checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(cfg.Checks))
			}
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
