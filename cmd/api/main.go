// Package main provides the entrypoint for the city air export API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/cityair/cityair-export/internal/api"
	"github.com/cityair/cityair-export/internal/api/middleware"
	"github.com/cityair/cityair-export/internal/atmos"
	"github.com/cityair/cityair-export/internal/catalog"
	"github.com/cityair/cityair-export/internal/export"
	"github.com/cityair/cityair-export/internal/pollutant"
	"github.com/cityair/cityair-export/internal/telemetry"
	"github.com/cityair/cityair-export/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cityair-export-api"

	// Local overrides; absence is fine outside development.
	_ = godotenv.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting city air export API")

	// Get configuration from environment
	port := envOr("APP_PORT", "8080")
	env := envOr("APP_ENV", "development")
	otlpEndpoint := envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Load the station directory
	workbookPath := envOr("SITE_WORKBOOK_PATH", "site_ids_to_fetch_daily_data.xlsx")
	cat, err := catalog.LoadWorkbook(workbookPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", workbookPath).Msg("failed to load station directory")
	}
	log.Info().
		Str("path", workbookPath).
		Int("stations", cat.Len()).
		Int("cities", len(cat.Cities())).
		Msg("station directory loaded")

	// Load the pollutant allow-list, with optional YAML overrides
	pollutants := pollutant.Default()
	if cfgPath := os.Getenv("POLLUTANT_CONFIG_PATH"); cfgPath != "" {
		pollutants, err = pollutant.Load(cfgPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfgPath).Msg("failed to load pollutant config")
		}
		log.Info().Str("path", cfgPath).Msg("pollutant overrides loaded")
	}

	// Initialize the remote series client
	client := atmos.NewClient(atmos.ClientConfig{
		BaseURL: os.Getenv("ATMOS_BASE_URL"),
		APIKey:  envOr("ATMOS_API_KEY", "ncapAPIKey"),
	})

	// Export output directory
	exportDir := envOr("EXPORT_DIR", filepath.Join(os.TempDir(), "cityair-exports"))
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", exportDir).Msg("failed to create export directory")
	}

	// Initialize the export pipeline and job infrastructure
	pipeline := export.NewPipeline(export.PipelineConfig{
		Fetcher:    client,
		Catalog:    cat,
		Pollutants: pollutants,
		Logger:     log,
	})

	jobTTL := durationOr("JOB_TTL", time.Hour)
	registry := worker.NewRegistry(jobTTL)
	registry.StartEvictor(5 * time.Minute)
	defer registry.Stop()

	queue := worker.NewQueue(worker.QueueConfig{
		Workers:  intOr("EXPORT_WORKERS", 2),
		Capacity: intOr("EXPORT_QUEUE_CAPACITY", 32),
		Runner:   pipeline,
		Registry: registry,
		Logger:   log,
	})

	queueCtx, cancelQueue := context.WithCancel(ctx)
	defer cancelQueue()
	queue.Start(queueCtx)
	log.Info().
		Str("export_dir", exportDir).
		Dur("job_ttl", jobTTL).
		Msg("export workers started")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Catalog:     cat,
		Pollutants:  pollutants,
		Registry:    registry,
		Queue:       queue,
		ExportDir:   exportDir,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout. The server stops accepting
	// submissions first, then in-flight jobs drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	queue.Stop()

	log.Info().Msg("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
