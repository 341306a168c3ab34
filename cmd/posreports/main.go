package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"posreports/internal/cache"
	"posreports/internal/cli"
	"posreports/internal/core"
	apphttp "posreports/internal/http"
	"posreports/internal/log"
	"posreports/internal/observability"
	"posreports/internal/reports"
	"posreports/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	metrics := observability.NewMetrics()
	res := cli.InitBackend(context.Background(), logger, cfg)

	rows := cli.NewFetcher(cfg, res, metrics, logger)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(rows.Cache())
	cacheManager.StartCleanup(time.Minute)

	engine := reports.NewEngine(cli.Normalizer(cfg), core.DefaultDisplay(), nil)

	var publisher services.Publisher
	if res.Queue != nil {
		publisher = res.Queue
	}
	svc := services.NewReportService(rows, engine, publisher, metrics, logger)

	srv := apphttp.NewServer(svc, apphttp.Options{
		Addr:             ":" + cfg.Port,
		Logger:           logger,
		Metrics:          metrics,
		RefreshRateLimit: cfg.RefreshRateLimit,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting posreports server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"snapshots", cfg.SnapshotBackend,
		"refresh_queue", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
