// Package orchestrator gathers the signals for a payment request concurrently
// and reaches a provisional decision, recording each step in an audit trace.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const planDetail = "Check balance, risk, and limits"

// SignalSource is the subset of the signal adapter the orchestrator needs.
type SignalSource interface {
	GetBalance(ctx context.Context, customerID string) (int64, models.Trace, error)
	GetRiskSignals(ctx context.Context, customerID, payeeID string) (models.RiskSignals, models.Trace, error)
}

// Params are the inputs of a single orchestration.
type Params struct {
	CustomerID          string
	PayeeID             string
	AmountMinorUnits    int64
	Currency            string
	RequestID           string
	DailyThresholdMinor int64
}

// Provisional is the decision reached before the balance is rechecked under lock.
type Provisional struct {
	Decision  models.Decision
	Reasons   []string
	Trace     models.Trace
	RequestID string
}

// Orchestrator runs the agent pipeline up to the provisional decision.
type Orchestrator struct {
	signals SignalSource
}

// New creates an Orchestrator.
func New(signals SignalSource) *Orchestrator {
	return &Orchestrator{signals: signals}
}

// Run fetches the balance and the risk signals in parallel, waits for both,
// and applies the decision rules. If a lookup fails for good, the returned
// Provisional still carries the trace recorded so far together with the error.
func (o *Orchestrator) Run(ctx context.Context, p Params) (Provisional, error) {
	ctx, span := otel.Tracer("payment-decisions/orchestrator").Start(ctx, "orchestrator.Run")
	defer span.End()

	out := Provisional{RequestID: p.RequestID}
	trace := models.Trace{}.Add("plan", planDetail)

	var (
		available    int64
		risk         models.RiskSignals
		balanceTrace models.Trace
		riskTrace    models.Trace
		balanceErr   error
		riskErr      error
	)

	var g errgroup.Group
	g.Go(func() error {
		available, balanceTrace, balanceErr = o.signals.GetBalance(ctx, p.CustomerID)
		return balanceErr
	})
	g.Go(func() error {
		risk, riskTrace, riskErr = o.signals.GetRiskSignals(ctx, p.CustomerID, p.PayeeID)
		return riskErr
	})
	waitErr := g.Wait()

	// Retry steps are merged in a fixed order so the trace does not depend on scheduling.
	trace = trace.Concat(balanceTrace).Concat(riskTrace)

	if waitErr != nil {
		err := balanceErr
		if err == nil {
			err = riskErr
		}
		out.Trace = trace
		span.RecordError(err)
		span.SetStatus(codes.Error, "signal lookup failed")
		return out, fmt.Errorf("failed to gather signals: %w", err)
	}

	trace = trace.
		Add("tool:getBalance", fmt.Sprintf("availableCents=%d", available)).
		Add("tool:getRiskSignals", risk.String())

	outcome := rules.Decide(p.AmountMinorUnits, available, risk, p.DailyThresholdMinor)
	trace = trace.Add("rules", RulesDetail(outcome.Decision, outcome.Reasons))

	span.SetAttributes(
		attribute.String("payment.decision", string(outcome.Decision)),
		attribute.StringSlice("payment.reasons", outcome.Reasons),
	)

	out.Decision = outcome.Decision
	out.Reasons = outcome.Reasons
	out.Trace = trace
	return out, nil
}

// RulesDetail formats the trace detail of the rules step.
func RulesDetail(decision models.Decision, reasons []string) string {
	detail := "decision=" + string(decision)
	if len(reasons) > 0 {
		detail += ", reasons=" + strings.Join(reasons, "|")
	}
	return detail
}
