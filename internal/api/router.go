// Package api provides the HTTP API for the city air export service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cityair/cityair-export/internal/api/handler"
	"github.com/cityair/cityair-export/internal/api/middleware"
	"github.com/cityair/cityair-export/internal/catalog"
	"github.com/cityair/cityair-export/internal/pollutant"
	"github.com/cityair/cityair-export/internal/worker"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Catalog    *catalog.Catalog
	Pollutants *pollutant.Registry
	Registry   *worker.Registry
	Queue      *worker.Queue
	ExportDir  string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "cityair-export-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Catalog)
	metadataHandler := handler.NewMetadataHandler(cfg.Catalog, cfg.Pollutants)
	exportHandler := handler.NewExportHandler(cfg.Pollutants, cfg.Registry, cfg.Queue, cfg.ExportDir)

	// Rate limit middleware for different endpoint categories
	exportRateLimit := middleware.RateLimitByIP(middleware.ExportRateLimit)     // 10 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 120 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Metadata endpoints - standard rate limiting
		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/cities", metadataHandler.ListCities)
			r.Get("/pollutants", metadataHandler.ListPollutants)
		})

		// Export endpoints - submission fans out into remote fetches, so
		// it gets the strict limit; polling and download are cheap.
		r.Route("/exports", func(r chi.Router) {
			r.With(middleware.RequireJSON, exportRateLimit).Post("/", exportHandler.CreateExport)
			r.With(standardRateLimit).Get("/{jobId}/progress", exportHandler.GetProgress)
			r.With(standardRateLimit).Get("/download", exportHandler.Download)
		})
	})

	return r
}
