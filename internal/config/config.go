// Package config centralises configuration parsing for the fittrack binaries.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values.
type Config struct {
	Env            string
	HTTPAddress    string
	MetricsAddress string
	PostgresURL    string // empty selects the in-memory store
	CORSOrigin     string
	AppBaseURL     string
	AuditEnabled   bool

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	RedisURL                  string // empty selects the process-local limiter store
	RateLimitWindow           time.Duration
	RateLimitReadPerWindow    int
	RateLimitWritePerWindow   int
	RateLimitBillingPerWindow int
	RateLimitSweepProbability float64

	KafkaBrokers       []string
	SchemaRegistryURL  string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	ConsumerGroupID    string
	ConsumerTopics     []string
	DLQPollInterval    time.Duration // Interval between DLQ polling iterations.
	DLQMaxRetries      int           // Maximum number of DLQ retry attempts before quarantine.
	DLQBaseDelay       time.Duration // Base delay used for exponential backoff.

	BillingAPIURL         string
	BillingAPIKey         string
	BillingWebhookSecret  string
	BillingStoreID        string
	BillingProVariantID   string
	BillingRequestsPerSec float64
}

// LoadDotEnv loads the given .env files into the process environment. Variables
// already set win over file values and missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	return Config{
		Env:            getEnv("APP_ENV", "development"),
		HTTPAddress:    getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress: getEnv("METRICS_ADDRESS", ":9190"),
		PostgresURL:    getEnv("POSTGRES_URL", ""),
		CORSOrigin:     getEnv("CORS_ORIGIN", "http://localhost:3000"),
		AppBaseURL:     strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		AuditEnabled:   getBoolEnv("AUDIT_ENABLED", true),

		JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", "authenticated"),

		RedisURL:                  getEnv("REDIS_URL", ""),
		RateLimitWindow:           getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitReadPerWindow:    getIntEnv("RATE_LIMIT_READ_PER_MIN", 120),
		RateLimitWritePerWindow:   getIntEnv("RATE_LIMIT_WRITE_PER_MIN", 30),
		RateLimitBillingPerWindow: getIntEnv("RATE_LIMIT_BILLING_PER_MIN", 10),
		RateLimitSweepProbability: getFloatEnv("RATE_LIMIT_SWEEP_PROBABILITY", 0.01),

		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		SchemaRegistryURL:  getEnv("SCHEMA_REGISTRY_URL", "http://schema-registry:8081"),
		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 25),
		ConsumerGroupID:    getEnv("CONSUMER_GROUP_ID", "fittrack-audit"),
		ConsumerTopics:     splitAndTrim(getEnv("CONSUMER_TOPICS", "workout_events,billing_events")),
		DLQPollInterval:    getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:      getIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:       getDurationEnv("DLQ_BASE_DELAY", time.Minute),

		BillingAPIURL:         strings.TrimRight(getEnv("BILLING_API_URL", "https://api.lemonsqueezy.com/v1"), "/"),
		BillingAPIKey:         getEnv("BILLING_API_KEY", ""),
		BillingWebhookSecret:  getEnv("BILLING_WEBHOOK_SECRET", ""),
		BillingStoreID:        getEnv("BILLING_STORE_ID", ""),
		BillingProVariantID:   getEnv("BILLING_PRO_VARIANT_ID", ""),
		BillingRequestsPerSec: getFloatEnv("BILLING_REQUESTS_PER_SEC", 5),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
