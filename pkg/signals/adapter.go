// Package signals provides the lookups the decision agent relies on: the advisory
// balance, the risk signals of a payee, and the creation of review cases.
package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/retry"
	"github.com/chris/payment-decisions/pkg/storage"
)

const (
	LabelGetBalance     = "getBalance"
	LabelGetRiskSignals = "getRiskSignals"
)

// LookupError is returned when a lookup still fails after the retry budget is spent.
type LookupError struct {
	Label    string
	Attempts int
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Label, e.Attempts, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Adapter wraps the balance and risk lookups in a retry policy and reports
// every attempt as trace steps.
type Adapter struct {
	balances storage.BalanceReader
	risk     RiskSource
	policy   retry.Policy
	now      func() time.Time
}

// NewAdapter creates an Adapter.
func NewAdapter(balances storage.BalanceReader, risk RiskSource, policy retry.Policy) *Adapter {
	if policy.Retryable == nil {
		policy.Retryable = Retryable
	}
	return &Adapter{
		balances: balances,
		risk:     risk,
		policy:   policy,
		now:      time.Now,
	}
}

// SetClock replaces the clock used to stamp new cases.
func (a *Adapter) SetClock(now func() time.Time) {
	a.now = now
}

// GetBalance returns the advisory balance of a customer. The read happens
// outside any lock, so the value may be stale by the time it is used.
func (a *Adapter) GetBalance(ctx context.Context, customerID string) (int64, models.Trace, error) {
	res := retry.Run(ctx, a.policy, func(ctx context.Context) (int64, error) {
		return a.balances.GetBalance(ctx, customerID)
	})
	return res.Value, retryTrace(LabelGetBalance, res), lookupErr(LabelGetBalance, res)
}

// GetRiskSignals returns the risk signals of a (customer, payee) pair.
func (a *Adapter) GetRiskSignals(ctx context.Context, customerID, payeeID string) (models.RiskSignals, models.Trace, error) {
	res := retry.Run(ctx, a.policy, func(ctx context.Context) (models.RiskSignals, error) {
		return a.risk.RiskSignals(ctx, customerID, payeeID)
	})
	return res.Value, retryTrace(LabelGetRiskSignals, res), lookupErr(LabelGetRiskSignals, res)
}

// CreateCase opens a review case for a payment through w, usually the running transaction.
func (a *Adapter) CreateCase(ctx context.Context, w storage.CaseWriter, paymentID, reason string) (*models.Case, error) {
	c := &models.Case{
		PaymentId: paymentID,
		Status:    models.OpenCaseStatus(reason),
		CreatedAt: a.now().UTC(),
	}
	if err := w.InsertCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create case for payment %s: %w", paymentID, err)
	}
	return c, nil
}

// retryTrace turns the attempts of a lookup into trace steps. A first-try
// success leaves no trace.
func retryTrace[T any](label string, res retry.Result[T]) models.Trace {
	var trace models.Trace
	step := "retry:" + label
	for _, attempt := range res.Attempts {
		if attempt.Err != nil {
			trace = trace.Add(step, fmt.Sprintf("attempt %d failed: %s", attempt.Number, attempt.Err.Error()))
			continue
		}
		if attempt.Number > 1 {
			trace = trace.Add(step, fmt.Sprintf("success on attempt %d", attempt.Number))
		}
	}
	return trace
}

func lookupErr[T any](label string, res retry.Result[T]) error {
	if res.Succeeded() {
		return nil
	}
	return &LookupError{Label: label, Attempts: len(res.Attempts), Err: res.Err}
}
