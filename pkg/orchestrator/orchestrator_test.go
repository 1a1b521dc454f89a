package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/retry"
	"github.com/chris/payment-decisions/pkg/signals"
	"github.com/chris/payment-decisions/pkg/storage/mocks"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const customerID = "11111111-1111-1111-1111-111111111111"

type fakeSignals struct {
	balance     func(ctx context.Context) (int64, models.Trace, error)
	riskSignals func(ctx context.Context) (models.RiskSignals, models.Trace, error)
}

func (f fakeSignals) GetBalance(ctx context.Context, _ string) (int64, models.Trace, error) {
	return f.balance(ctx)
}

func (f fakeSignals) GetRiskSignals(ctx context.Context, _, _ string) (models.RiskSignals, models.Trace, error) {
	return f.riskSignals(ctx)
}

func params(payee string, amount int64) Params {
	return Params{
		CustomerID:          customerID,
		PayeeID:             payee,
		AmountMinorUnits:    amount,
		Currency:            "USD",
		RequestID:           "req-1",
		DailyThresholdMinor: 20000,
	}
}

func assertGoldenTrace(t *testing.T, name string, trace models.Trace) {
	t.Helper()
	data, err := json.MarshalIndent(trace, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, name, data)
}

func TestRunTrace(t *testing.T) {
	policy := retry.Policy{MaxAttempts: 2, Delay: time.Millisecond}

	t.Run("Review Recent Disputes", func(t *testing.T) {
		store := mocks.NewStorage(t)
		store.On("GetBalance", mock.Anything, customerID).Return(int64(10000), nil)

		o := New(signals.NewAdapter(store, signals.HashRiskSource{}, policy))
		got, err := o.Run(context.Background(), params("payee-1", 5000))

		require.NoError(t, err)
		assert.Equal(t, models.REVIEW, got.Decision)
		assert.Equal(t, []string{models.ReasonRecentDisputes}, got.Reasons)
		assert.Equal(t, "req-1", got.RequestID)
		assertGoldenTrace(t, "review_recent_disputes", got.Trace)
	})

	t.Run("Allow After Balance Retry", func(t *testing.T) {
		store := mocks.NewStorage(t)
		store.On("GetBalance", mock.Anything, customerID).Return(int64(0), errors.New("timeout")).Once()
		store.On("GetBalance", mock.Anything, customerID).Return(int64(10000), nil).Once()

		o := New(signals.NewAdapter(store, signals.HashRiskSource{}, policy))
		got, err := o.Run(context.Background(), params("acme", 5000))

		require.NoError(t, err)
		assert.Equal(t, models.ALLOW, got.Decision)
		assert.Empty(t, got.Reasons)
		assertGoldenTrace(t, "allow_after_balance_retry", got.Trace)
	})
}

func TestRun(t *testing.T) {
	calm := models.RiskSignals{VelocityScore: 5}

	t.Run("Block Insufficient Funds", func(t *testing.T) {
		o := New(fakeSignals{
			balance:     func(context.Context) (int64, models.Trace, error) { return 100, nil, nil },
			riskSignals: func(context.Context) (models.RiskSignals, models.Trace, error) { return calm, nil, nil },
		})

		got, err := o.Run(context.Background(), params("acme", 5000))

		require.NoError(t, err)
		assert.Equal(t, models.BLOCK, got.Decision)
		assert.Equal(t, models.TraceStep{Step: "rules", Detail: "decision=block, reasons=insufficient_funds"}, got.Trace[len(got.Trace)-1])
	})

	t.Run("Lookups Run Concurrently", func(t *testing.T) {
		var started sync.WaitGroup
		started.Add(2)
		both := make(chan struct{})
		go func() {
			started.Wait()
			close(both)
		}()
		wait := func() error {
			started.Done()
			select {
			case <-both:
				return nil
			case <-time.After(time.Second):
				return errors.New("lookups were serialized")
			}
		}

		o := New(fakeSignals{
			balance: func(context.Context) (int64, models.Trace, error) {
				return 10000, nil, wait()
			},
			riskSignals: func(context.Context) (models.RiskSignals, models.Trace, error) {
				return calm, nil, wait()
			},
		})

		_, err := o.Run(context.Background(), params("acme", 100))
		assert.NoError(t, err)
	})

	t.Run("Risk Failure Aborts With Partial Trace", func(t *testing.T) {
		boom := &signals.LookupError{Label: signals.LabelGetRiskSignals, Attempts: 2, Err: errors.New("unavailable")}
		o := New(fakeSignals{
			balance: func(context.Context) (int64, models.Trace, error) { return 10000, nil, nil },
			riskSignals: func(context.Context) (models.RiskSignals, models.Trace, error) {
				return models.RiskSignals{}, models.Trace{
					{Step: "retry:getRiskSignals", Detail: "attempt 1 failed: unavailable"},
					{Step: "retry:getRiskSignals", Detail: "attempt 2 failed: unavailable"},
				}, boom
			},
		})

		got, err := o.Run(context.Background(), params("acme", 100))

		require.ErrorIs(t, err, boom)
		assert.Empty(t, got.Decision)
		assert.Equal(t, models.Trace{
			{Step: "plan", Detail: "Check balance, risk, and limits"},
			{Step: "retry:getRiskSignals", Detail: "attempt 1 failed: unavailable"},
			{Step: "retry:getRiskSignals", Detail: "attempt 2 failed: unavailable"},
		}, got.Trace)
	})

	t.Run("Balance Error Reported First", func(t *testing.T) {
		balanceErr := errors.New("balance down")
		o := New(fakeSignals{
			balance: func(context.Context) (int64, models.Trace, error) { return 0, nil, balanceErr },
			riskSignals: func(context.Context) (models.RiskSignals, models.Trace, error) {
				return calm, nil, errors.New("risk down")
			},
		})

		_, err := o.Run(context.Background(), params("acme", 100))
		assert.ErrorIs(t, err, balanceErr)
	})
}

func TestRulesDetail(t *testing.T) {
	assert.Equal(t, "decision=allow", RulesDetail(models.ALLOW, []string{}))
	assert.Equal(t, "decision=review, reasons=recent_disputes|amount_above_daily_threshold",
		RulesDetail(models.REVIEW, []string{models.ReasonRecentDisputes, models.ReasonAmountAboveDailyThreshold}))
}
