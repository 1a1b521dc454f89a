// Package coordinator turns a provisional decision into a final, committed one.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/chris/payment-decisions/pkg/locks"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/orchestrator"
	"github.com/chris/payment-decisions/pkg/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CaseCreator opens review cases through the given writer.
type CaseCreator interface {
	CreateCase(ctx context.Context, w storage.CaseWriter, paymentID, reason string) (*models.Case, error)
}

// Final is the committed outcome of a payment request.
type Final struct {
	Decision  models.Decision
	Reasons   []string
	Trace     models.Trace
	RequestID string
	Payment   *models.PaymentRecord
	// Case is nil when the payment was allowed.
	Case *models.Case
}

// Coordinator rechecks the balance and commits the outcome while holding the
// customer's lock, inside a single storage transaction.
type Coordinator struct {
	locks *locks.KeyedMutex
	store storage.Transactor
	cases CaseCreator
	newID func() string
	now   func() time.Time
}

// New creates a Coordinator.
func New(km *locks.KeyedMutex, store storage.Transactor, cases CaseCreator) *Coordinator {
	return &Coordinator{
		locks: km,
		store: store,
		cases: cases,
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

// Finalize rechecks the authoritative balance and commits the payment, the
// balance debit and the review case as one unit. A provisional allow is
// downgraded to block if the balance no longer covers the amount; review and
// block decisions are never changed.
func (c *Coordinator) Finalize(ctx context.Context, req models.DecisionRequest, p orchestrator.Provisional) (Final, error) {
	ctx, span := otel.Tracer("payment-decisions/coordinator").Start(ctx, "coordinator.Finalize")
	defer span.End()

	final, err := locks.WithExclusive(c.locks, req.CustomerId, func() (Final, error) {
		var final Final
		err := c.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			// The closure may run again if the store retries the transaction.
			final = Final{
				Decision:  p.Decision,
				Reasons:   p.Reasons,
				Trace:     p.Trace,
				RequestID: p.RequestID,
			}
			return c.commit(ctx, tx, req, &final)
		})
		return final, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize failed")
		return Final{}, fmt.Errorf("failed to finalize payment: %w", err)
	}

	span.SetAttributes(
		attribute.String("payment.id", final.Payment.Id),
		attribute.String("payment.decision", string(final.Decision)),
	)
	return final, nil
}

func (c *Coordinator) commit(ctx context.Context, tx storage.Tx, req models.DecisionRequest, final *Final) error {
	available, _, err := tx.GetBalance(ctx, req.CustomerId)
	if err != nil {
		return fmt.Errorf("failed to recheck balance: %w", err)
	}

	if final.Decision == models.ALLOW {
		if req.AmountMinorUnits > available {
			final.Decision = models.BLOCK
			final.Reasons = []string{models.ReasonInsufficientFunds}
			final.Trace = final.Trace.Add("lock:recheck", "insufficient after recheck")
		} else if err := tx.SetBalance(ctx, req.CustomerId, available-req.AmountMinorUnits); err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
	}

	payment := &models.PaymentRecord{
		Id:               c.newID(),
		CustomerId:       req.CustomerId,
		PayeeId:          req.PayeeId,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Decision:         final.Decision,
		CreatedAt:        c.now().UTC(),
	}
	if err := tx.InsertPayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	final.Payment = payment

	if final.Decision != models.ALLOW {
		reason := models.ReasonManualReview
		if len(final.Reasons) > 0 {
			reason = final.Reasons[0]
		}
		cs, err := c.cases.CreateCase(ctx, tx, payment.Id, reason)
		if err != nil {
			return err
		}
		final.Case = cs
	}
	return nil
}
