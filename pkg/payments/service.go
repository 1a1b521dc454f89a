// Package payments runs the payment decision pipeline: idempotent replay,
// provisional decision, recheck-and-commit, and response persistence.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chris/payment-decisions/pkg/coordinator"
	"github.com/chris/payment-decisions/pkg/logging"
	"github.com/chris/payment-decisions/pkg/metrics"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/orchestrator"
	"github.com/chris/payment-decisions/pkg/review"
)

// ReplayStore finds and saves the responses of processed requests.
type ReplayStore interface {
	Find(ctx context.Context, customerID, key string) ([]byte, bool, error)
	Save(ctx context.Context, customerID, key string, response []byte)
}

// Provisioner reaches a provisional decision.
type Provisioner interface {
	Run(ctx context.Context, p orchestrator.Params) (orchestrator.Provisional, error)
}

// Finalizer rechecks and commits a provisional decision.
type Finalizer interface {
	Finalize(ctx context.Context, req models.DecisionRequest, p orchestrator.Provisional) (coordinator.Final, error)
}

// Outcome is the response of a decision request.
type Outcome struct {
	// Body is the exact JSON response body. A replayed request gets the stored bytes unchanged.
	Body     []byte
	Replayed bool
	Decision models.Decision
}

// Service wires the pipeline stages together.
type Service struct {
	replays        ReplayStore
	provisioner    Provisioner
	finalizer      Finalizer
	reviews        review.Publisher
	metrics        *metrics.Recorder
	logger         *slog.Logger
	dailyThreshold int64
}

// Config holds the collaborators of a Service.
type Config struct {
	Replays        ReplayStore
	Provisioner    Provisioner
	Finalizer      Finalizer
	Reviews        review.Publisher
	Metrics        *metrics.Recorder
	Logger         *slog.Logger
	DailyThreshold int64
}

// NewService creates a Service. Reviews and Metrics default to no-ops.
func NewService(cfg Config) *Service {
	if cfg.Reviews == nil {
		cfg.Reviews = review.NoOpPublisher{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		replays:        cfg.Replays,
		provisioner:    cfg.Provisioner,
		finalizer:      cfg.Finalizer,
		reviews:        cfg.Reviews,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		dailyThreshold: cfg.DailyThreshold,
	}
}

// Decide processes a validated decision request.
func (s *Service) Decide(ctx context.Context, req models.DecisionRequest, requestID string) (Outcome, error) {
	if logging.RequestID(ctx) != requestID {
		ctx = logging.WithRequestID(ctx, requestID)
	}

	stored, found, err := s.replays.Find(ctx, req.CustomerId, req.IdempotencyKey)
	if err != nil {
		return Outcome{}, err
	}
	if found {
		s.metrics.RecordIdempotencyHit(ctx)
		s.logger.InfoContext(ctx, "replaying stored response",
			slog.String("customer_id", req.CustomerId),
			slog.String("idempotency_key", req.IdempotencyKey),
		)
		return Outcome{Body: stored, Replayed: true}, nil
	}

	provisional, err := s.provisioner.Run(ctx, orchestrator.Params{
		CustomerID:          req.CustomerId,
		PayeeID:             req.PayeeId,
		AmountMinorUnits:    req.AmountMinorUnits,
		Currency:            req.Currency,
		RequestID:           requestID,
		DailyThresholdMinor: s.dailyThreshold,
	})
	if err != nil {
		return Outcome{}, &SignalLookupError{Trace: provisional.Trace, Err: err}
	}

	final, err := s.finalizer.Finalize(ctx, req, provisional)
	if err != nil {
		return Outcome{}, &TransactionError{Err: err}
	}

	body, err := json.Marshal(models.DecisionResult{
		Decision:   final.Decision,
		Reasons:    final.Reasons,
		AgentTrace: final.Trace,
		RequestId:  final.RequestID,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to marshal decision: %w", err)
	}

	s.replays.Save(ctx, req.CustomerId, req.IdempotencyKey, body)
	s.metrics.RecordDecision(ctx, final.Decision)

	if final.Case != nil {
		// The case is already committed; a lost notification must not fail the request.
		if err := s.reviews.Publish(ctx, review.NewMessage(final.Payment, final.Case)); err != nil {
			s.logger.ErrorContext(ctx, "case created but failed to enqueue for review",
				slog.String("payment_id", final.Payment.Id),
				slog.Any("error", err),
			)
		}
	}

	s.logger.InfoContext(ctx, "payment decided",
		slog.String("payment_id", final.Payment.Id),
		slog.String("decision", string(final.Decision)),
	)
	return Outcome{Body: body, Decision: final.Decision}, nil
}
