package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/goconsolidation/internal/adapter/http/handler"
	"github.com/iho/goconsolidation/internal/adapter/http/middleware"
	"github.com/iho/goconsolidation/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	BalanceHandler   *handler.BalanceHandler
	EventHandler     *handler.EventHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	IDGenerator      usecase.IDGenerator
	Logger           zerolog.Logger
	// MetricsHandler serves /metrics. Defaults to the prometheus default registry.
	MetricsHandler http.Handler
	// ReconciliationHandler is optional.
	ReconciliationHandler *handler.ReconciliationHandler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	if cfg.IDGenerator != nil {
		r.Use(middleware.NewCorrelationMiddleware(cfg.Logger, cfg.IDGenerator).Wrap)
	}
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/balances", func(r chi.Router) {
			r.Get("/report", cfg.BalanceHandler.Report)
			if cfg.ReconciliationHandler != nil {
				r.Get("/reconciliation", cfg.ReconciliationHandler.Reconcile)
			}
			r.Get("/{date}", cfg.BalanceHandler.Get)
		})

		r.Group(func(r chi.Router) {
			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
			}
			r.Post("/events", cfg.EventHandler.Submit)
		})
	})

	return r
}
