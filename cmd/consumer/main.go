package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/fittrack/internal/audit"
	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/consumer"
	"example.com/fittrack/internal/logging"
	"example.com/fittrack/internal/persistence/postgres"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, "fittrack-consumer")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without Postgres the audit logger falls back to console lines.
	var sink audit.Sink
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		sink = postgres.NewAuditSink(pool)
	}
	handler := consumer.NewAuditHandler(audit.NewLogger(sink, logger, cfg.AuditEnabled))

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("consumer metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
			ErrorLogger:     kafka.LoggerFunc(logger.Sugar().Named("kafka").Errorf),
		})

		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.With(zap.String("topic", topic))))

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			logger.Info("consumer started", zap.String("topic", topic), zap.String("group", cfg.ConsumerGroupID))
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped with error", zap.String("topic", topic), zap.Error(err))
			}
		}(topic, reader)
	}

	<-stop
	logger.Info("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	wg.Wait()
}
