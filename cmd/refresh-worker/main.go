package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"posreports/internal/cli"
	"posreports/internal/log"
	"posreports/internal/observability"
	"posreports/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting refresh-worker")

	metrics := observability.NewMetrics()
	res := cli.InitBackend(context.Background(), logger, cfg)
	if cfg.AMQPURL != "" && res.Queue == nil {
		logger.Error("AMQP is configured but the broker is unreachable")
		os.Exit(1)
	}

	rows := cli.NewFetcher(cfg, res, metrics, logger)
	w := worker.NewRefreshWorker(rows, metrics, logger)

	// Metrics only; the worker has no API.
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", log.FieldError, err)
		}
	}()

	// Warm the snapshots before taking requests.
	logger.Info("Performing startup refresh", "refreshed", w.RefreshAll(ctx))

	go w.RunPeriodic(ctx, cfg.RefreshInterval)

	if res.Queue != nil {
		go func() {
			if err := res.Queue.ConsumeRefresh(ctx, w.HandleRefreshMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("No AMQP URL configured, running periodic refresh only", "interval", cfg.RefreshInterval)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Refresh worker stopped gracefully")
}
