package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/logging"
	"example.com/fittrack/internal/outbox"
)

const defaultDLQBatchSize = 50

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, "fittrack-dlqmanager")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.PostgresURL == "" {
		logger.Fatal("POSTGRES_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, logger, cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("dlq manager metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	logger.Info("dlq manager started",
		zap.Duration("interval", cfg.DLQPollInterval),
		zap.Int("max_retries", cfg.DLQMaxRetries))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			requeued, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				logger.Error("dlq manager run failed", zap.Error(err))
			} else if requeued > 0 {
				logger.Info("dlq manager requeued entries", zap.Int("count", requeued))
			}
		case <-stop:
			logger.Info("dlq manager received shutdown signal")
			cancel()
			break loop
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}
}
