// Package http exposes the materials service over a JSON HTTP API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
	"github.com/Arisex96/bio-mat-new/internal/interfaces/http/handlers"
	"github.com/Arisex96/bio-mat-new/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	CatalogHandler        *handlers.CatalogHandler
	RecommendationHandler *handlers.RecommendationHandler
	AnalyticsHandler      *handlers.AnalyticsHandler
	HealthHandler         *handlers.HealthHandler

	CORS    *middleware.CORSConfig
	Logging *middleware.LoggingConfig

	Logger         logging.Logger
	Metrics        *prometheus.AppMetrics
	MetricsPath    string
	MetricsHandler http.Handler
}

// NewRouter constructs the complete HTTP route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.Logger != nil {
		lc := middleware.DefaultLoggingConfig()
		if cfg.Logging != nil {
			lc = *cfg.Logging
		}
		r.Use(middleware.RequestLogging(cfg.Logger, lc))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerCatalogRoutes(api, cfg.CatalogHandler)
		registerRecommendationRoutes(api, cfg.RecommendationHandler)
		registerAnalyticsRoutes(api, cfg.AnalyticsHandler)
	})

	return r
}

func registerCatalogRoutes(r chi.Router, h *handlers.CatalogHandler) {
	if h == nil {
		return
	}
	r.Route("/catalog", func(cr chi.Router) {
		cr.Get("/", h.Overview)
		cr.Post("/import", h.Import)
	})
}

func registerRecommendationRoutes(r chi.Router, h *handlers.RecommendationHandler) {
	if h == nil {
		return
	}
	r.Get("/requirements/default", h.DefaultRequirements)
	r.Route("/recommendations", func(rr chi.Router) {
		rr.Post("/", h.Recommend)
		rr.Post("/rank", h.Rank)
		rr.Post("/deviations", h.Deviations)
		rr.Post("/profile", h.Profile)
		rr.Post("/export", h.Export)
	})
}

func registerAnalyticsRoutes(r chi.Router, h *handlers.AnalyticsHandler) {
	if h == nil {
		return
	}
	r.Route("/analytics", func(ar chi.Router) {
		ar.Post("/correlation", h.Correlation)
		ar.Post("/pca", h.PCA)
	})
}
