// Package app wires the decision service from its configuration. The HTTP
// server, the Lambda entrypoint and the admin CLI all build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/payment-decisions/pkg/config"
	"github.com/chris/payment-decisions/pkg/coordinator"
	"github.com/chris/payment-decisions/pkg/handlers"
	"github.com/chris/payment-decisions/pkg/handlers/payments"
	"github.com/chris/payment-decisions/pkg/idempotency"
	"github.com/chris/payment-decisions/pkg/locks"
	"github.com/chris/payment-decisions/pkg/metrics"
	"github.com/chris/payment-decisions/pkg/orchestrator"
	paymentsvc "github.com/chris/payment-decisions/pkg/payments"
	"github.com/chris/payment-decisions/pkg/ratelimit"
	"github.com/chris/payment-decisions/pkg/retry"
	"github.com/chris/payment-decisions/pkg/review"
	"github.com/chris/payment-decisions/pkg/signals"
	"github.com/chris/payment-decisions/pkg/storage"
	dydbstore "github.com/chris/payment-decisions/pkg/storage/dynamodb"
	"github.com/chris/payment-decisions/pkg/storage/postgres"
	"github.com/chris/payment-decisions/pkg/storage/sqlite"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

// App is a fully wired decision service.
type App struct {
	Handler http.Handler
	Store   storage.Storage

	closers []func(context.Context) error
}

// awsLoader loads the shared AWS configuration at most once.
type awsLoader func() (aws.Config, error)

func newAWSLoader(ctx context.Context) awsLoader {
	return sync.OnceValues(func() (aws.Config, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
		}
		return cfg, nil
	})
}

// OpenStorage connects to the configured storage backend.
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	return openStorage(ctx, cfg, newAWSLoader(ctx))
}

func openStorage(ctx context.Context, cfg *config.Config, loadAWS awsLoader) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendDynamoDB:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return dydbstore.New(dynamodb.NewFromConfig(awsCfg),
			cfg.BalancesTable, cfg.PaymentsTable, cfg.CasesTable, cfg.IdempotencyTable), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// New builds the service described by cfg. Close must be called to release
// the storage and flush telemetry.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	loadAWS := newAWSLoader(ctx)

	shutdownTelemetry, err := metrics.Setup(ctx, metrics.TelemetryConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdownTelemetry)

	recorder, err := metrics.NewRecorder(otel.Meter(cfg.ServiceName))
	if err != nil {
		return nil, a.abort(ctx, fmt.Errorf("failed to create metrics: %w", err))
	}

	store, err := openStorage(ctx, cfg, loadAWS)
	if err != nil {
		return nil, a.abort(ctx, fmt.Errorf("failed to open storage: %w", err))
	}
	a.Store = store
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	var replays storage.IdempotencyStore = store
	if cfg.IdempotencyBackend == config.IdempotencyRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, a.abort(ctx, fmt.Errorf("failed to connect to redis: %w", err))
		}
		replays = idempotency.NewRedisBackend(client, cfg.IdempotencyTTL)
	}

	var risk signals.RiskSource = signals.HashRiskSource{}
	if cfg.RiskServiceURL != "" {
		risk = signals.NewHTTPRiskSource(cfg.RiskServiceURL, cfg.RiskServiceTimeout)
	}
	adapter := signals.NewAdapter(store, risk, retry.Policy{
		MaxAttempts: cfg.SignalRetryAttempts,
		Delay:       cfg.SignalRetryDelay,
	})

	var publisher review.Publisher = review.NoOpPublisher{}
	if cfg.ReviewQueueURL != "" {
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, a.abort(ctx, err)
		}
		publisher = review.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.ReviewQueueURL)
	}

	svc := paymentsvc.NewService(paymentsvc.Config{
		Replays:        idempotency.New(replays, logger),
		Provisioner:    orchestrator.New(adapter),
		Finalizer:      coordinator.New(locks.NewKeyedMutex(), store, adapter),
		Reviews:        publisher,
		Metrics:        recorder,
		Logger:         logger,
		DailyThreshold: cfg.DailyThresholdMinor,
	})

	api := handlers.NewApiHandler(payments.NewPaymentsHandler(svc, logger), cfg.ServiceName)
	a.Handler = handlers.NewRouter(api, handlers.RouterConfig{
		APIKey:  cfg.APIKey,
		Limiter: ratelimit.New(cfg.RateLimitCapacity, cfg.RateLimitRefill),
		Metrics: recorder,
		Logger:  logger,
	})

	logger.Info("service wired",
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("idempotency_backend", cfg.IdempotencyBackend),
		slog.Bool("remote_risk_source", cfg.RiskServiceURL != ""),
		slog.Bool("review_queue", cfg.ReviewQueueURL != ""),
	)
	return a, nil
}

// Close releases everything New acquired, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) abort(ctx context.Context, err error) error {
	return errors.Join(err, a.Close(ctx))
}
