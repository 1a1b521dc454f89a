// Package config reads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Idempotency backends.
const (
	IdempotencyStorage = "storage"
	IdempotencyRedis   = "redis"
)

// Config holds every setting of the decision service.
type Config struct {
	HTTPPort            string
	APIKey              string
	ServiceName         string
	AppEnv              string
	LogLevel            string
	DailyThresholdMinor int64
	RateLimitCapacity   int
	RateLimitRefill     float64
	SignalRetryAttempts int
	SignalRetryDelay    time.Duration
	StorageBackend      string
	SQLitePath          string
	DatabaseURL         string
	BalancesTable       string
	PaymentsTable       string
	CasesTable          string
	IdempotencyTable    string
	IdempotencyBackend  string
	RedisAddr           string
	IdempotencyTTL      time.Duration
	RiskServiceURL      string
	RiskServiceTimeout  time.Duration
	ReviewQueueURL      string
	OTLPEndpoint        string
	OTLPInsecure        bool
	ShutdownGracePeriod time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SERVICE_NAME", "payment-decisions")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DAILY_THRESHOLD_CENTS", 20000)
	v.SetDefault("RATE_LIMIT_CAPACITY", 5)
	v.SetDefault("RATE_LIMIT_REFILL_PER_SECOND", 5.0)
	v.SetDefault("SIGNAL_RETRY_ATTEMPTS", 2)
	v.SetDefault("SIGNAL_RETRY_DELAY", "50ms")
	v.SetDefault("STORAGE_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_PATH", "payments.db")
	v.SetDefault("IDEMPOTENCY_BACKEND", IdempotencyStorage)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("RISK_SERVICE_TIMEOUT", "2s")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", "10s")
}

// Load reads the configuration from environment variables, falling back to
// defaults for anything unset. It does not validate.
func Load() *Config {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	return &Config{
		HTTPPort:            v.GetString("HTTP_PORT"),
		APIKey:              v.GetString("API_KEY"),
		ServiceName:         v.GetString("SERVICE_NAME"),
		AppEnv:              v.GetString("APP_ENV"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		DailyThresholdMinor: v.GetInt64("DAILY_THRESHOLD_CENTS"),
		RateLimitCapacity:   v.GetInt("RATE_LIMIT_CAPACITY"),
		RateLimitRefill:     v.GetFloat64("RATE_LIMIT_REFILL_PER_SECOND"),
		SignalRetryAttempts: v.GetInt("SIGNAL_RETRY_ATTEMPTS"),
		SignalRetryDelay:    v.GetDuration("SIGNAL_RETRY_DELAY"),
		StorageBackend:      v.GetString("STORAGE_BACKEND"),
		SQLitePath:          v.GetString("SQLITE_PATH"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		BalancesTable:       v.GetString("DYNAMODB_BALANCES_TABLE_NAME"),
		PaymentsTable:       v.GetString("DYNAMODB_PAYMENTS_TABLE_NAME"),
		CasesTable:          v.GetString("DYNAMODB_CASES_TABLE_NAME"),
		IdempotencyTable:    v.GetString("DYNAMODB_IDEMPOTENCY_TABLE_NAME"),
		IdempotencyBackend:  v.GetString("IDEMPOTENCY_BACKEND"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		IdempotencyTTL:      v.GetDuration("IDEMPOTENCY_TTL"),
		RiskServiceURL:      v.GetString("RISK_SERVICE_URL"),
		RiskServiceTimeout:  v.GetDuration("RISK_SERVICE_TIMEOUT"),
		ReviewQueueURL:      v.GetString("REVIEW_QUEUE_URL"),
		OTLPEndpoint:        v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:        v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		ShutdownGracePeriod: v.GetDuration("SHUTDOWN_GRACE_PERIOD"),
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY must be set"))
	}
	if c.DailyThresholdMinor <= 0 {
		errs = append(errs, errors.New("DAILY_THRESHOLD_CENTS must be positive"))
	}
	if c.RateLimitCapacity <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_CAPACITY must be positive"))
	}
	if c.RateLimitRefill <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REFILL_PER_SECOND must be positive"))
	}
	if c.SignalRetryAttempts <= 0 {
		errs = append(errs, errors.New("SIGNAL_RETRY_ATTEMPTS must be positive"))
	}
	if c.SignalRetryDelay < 0 {
		errs = append(errs, errors.New("SIGNAL_RETRY_DELAY must not be negative"))
	}

	switch c.StorageBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH must be set for the sqlite backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set for the postgres backend"))
		}
	case BackendDynamoDB:
		if c.BalancesTable == "" || c.PaymentsTable == "" || c.CasesTable == "" || c.IdempotencyTable == "" {
			errs = append(errs, errors.New("one or more DynamoDB table name environment variables are not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.IdempotencyBackend {
	case IdempotencyStorage:
	case IdempotencyRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR must be set for the redis idempotency backend"))
		}
		if c.IdempotencyTTL <= 0 {
			errs = append(errs, errors.New("IDEMPOTENCY_TTL must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend))
	}

	return errors.Join(errs...)
}
