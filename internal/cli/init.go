// Package cli provides common CLI initialization utilities shared by
// cmd/posreports and cmd/refresh-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"posreports/internal/backend"
	"posreports/internal/config"
	"posreports/internal/dates"
	"posreports/internal/fetcher"
	"posreports/internal/log"
	"posreports/internal/observability"
	"posreports/internal/resilience"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and sets
// it as the default logger.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the row source, snapshot store and optional refresh
// queue. Returns the result or exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	return res
}

// NewFetcher wires the fetch chain from configuration.
func NewFetcher(cfg *config.Config, res *backend.BackendResult, metrics *observability.Metrics, logger *log.Logger) *fetcher.Fetcher {
	fcfg := fetcher.DefaultConfig()
	fcfg.Locators = res.Locators
	fcfg.CacheTTL = cfg.FetchCacheTTL
	fcfg.Timeout = cfg.FetchTimeout
	fcfg.Retry = resilience.Config{MaxRetries: cfg.FetchRetries, InitialBackoff: 500 * time.Millisecond}
	return fetcher.New(fcfg, res.Source, res.Store, fetcher.WithMetrics(metrics), fetcher.WithLogger(logger))
}

// Normalizer builds the date normalizer for the configured timezone.
func Normalizer(cfg *config.Config) *dates.Normalizer {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	return dates.NewNormalizer(loc)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
