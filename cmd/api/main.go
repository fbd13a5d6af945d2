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

	"example.com/fittrack/internal/api"
	"example.com/fittrack/internal/audit"
	"example.com/fittrack/internal/billing"
	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/logging"
	"example.com/fittrack/internal/observability"
	"example.com/fittrack/internal/outbox"
	"example.com/fittrack/internal/persistence/memory"
	"example.com/fittrack/internal/persistence/postgres"
	"example.com/fittrack/internal/platform/auth"
	"example.com/fittrack/internal/ratelimit"
	httptransport "example.com/fittrack/internal/transport/http"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, "fittrack-api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repo domain.Repository
		sink audit.Sink
		pool *pgxpool.Pool
	)
	if cfg.PostgresURL != "" {
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("postgres ping failed", zap.Error(err))
		}
		repo = postgres.NewRepository(pool)
		sink = postgres.NewAuditSink(pool)
	} else {
		logger.Warn("POSTGRES_URL not set, using in-memory store")
		repo = memory.NewStore()
		sink = &audit.MemorySink{}
	}

	var checkout domain.CheckoutProvider
	if cfg.BillingAPIKey != "" {
		client, err := billing.NewClient(billing.Config{
			BaseURL:        cfg.BillingAPIURL,
			APIKey:         cfg.BillingAPIKey,
			StoreID:        cfg.BillingStoreID,
			VariantID:      cfg.BillingProVariantID,
			RequestsPerSec: cfg.BillingRequestsPerSec,
		})
		if err != nil {
			logger.Fatal("invalid billing configuration", zap.Error(err))
		}
		checkout = client
	} else {
		logger.Warn("BILLING_API_KEY not set, checkout and portal are disabled")
	}

	service := domain.NewService(repo, checkout)
	auditLog := audit.NewLogger(sink, logger, cfg.AuditEnabled)

	var limiterStore ratelimit.Store
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid redis configuration", zap.Error(err))
		}
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, rate limiting fails open until it recovers", zap.Error(err))
		}
		limiterStore = ratelimit.NewRedisStore(client)
	} else {
		limiterStore = ratelimit.NewMemoryStore(ratelimit.WithSweepProbability(cfg.RateLimitSweepProbability))
	}
	limiter := ratelimit.NewLimiter(limiterStore)
	policies := ratelimit.Policies{
		Read:    ratelimit.Policy{Name: "read", Limit: cfg.RateLimitReadPerWindow, Window: cfg.RateLimitWindow},
		Write:   ratelimit.Policy{Name: "write", Limit: cfg.RateLimitWritePerWindow, Window: cfg.RateLimitWindow},
		Billing: ratelimit.Policy{Name: "billing", Limit: cfg.RateLimitBillingPerWindow, Window: cfg.RateLimitWindow},
	}

	var dispatcher *outbox.Dispatcher
	if pool != nil && len(cfg.KafkaBrokers) > 0 {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, logger)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	} else {
		logger.Info("outbox dispatcher disabled", zap.Bool("postgres", pool != nil), zap.Strings("kafka_brokers", cfg.KafkaBrokers))
	}

	handler := api.NewHandler(service, auditLog, logger,
		api.WithWebhookSecret(cfg.BillingWebhookSecret),
		api.WithAppBaseURL(cfg.AppBaseURL),
	)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(
		auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience},
		auth.SkipPaths("/healthz", "/metrics", "/v1/billing/webhook"),
	)

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.CORS(cfg.CORSOrigin),
		logging.Middleware(logger),
		observability.HTTPMiddleware,
		authMiddleware.Authenticate,
		ratelimit.Middleware(limiter, ratelimit.DefaultClassifier(policies), logger),
		authMiddleware.Require,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("fittrack api listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
