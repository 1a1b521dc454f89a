package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/retry"
	"github.com/chris/payment-decisions/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type riskFunc func(ctx context.Context, customerID, payeeID string) (models.RiskSignals, error)

func (f riskFunc) RiskSignals(ctx context.Context, customerID, payeeID string) (models.RiskSignals, error) {
	return f(ctx, customerID, payeeID)
}

var fastPolicy = retry.Policy{MaxAttempts: 2, Delay: time.Millisecond}

func TestAdapterGetBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := mocks.NewStorage(t)
		store.On("GetBalance", mock.Anything, "cust-1").Return(int64(10000), nil).Once()

		a := NewAdapter(store, HashRiskSource{}, fastPolicy)
		balance, trace, err := a.GetBalance(ctx, "cust-1")

		require.NoError(t, err)
		assert.Equal(t, int64(10000), balance)
		assert.Empty(t, trace)
	})

	t.Run("Recovers On Second Attempt", func(t *testing.T) {
		store := mocks.NewStorage(t)
		store.On("GetBalance", mock.Anything, "cust-1").Return(int64(0), errors.New("connection reset")).Once()
		store.On("GetBalance", mock.Anything, "cust-1").Return(int64(700), nil).Once()

		a := NewAdapter(store, HashRiskSource{}, fastPolicy)
		balance, trace, err := a.GetBalance(ctx, "cust-1")

		require.NoError(t, err)
		assert.Equal(t, int64(700), balance)
		assert.Equal(t, models.Trace{
			{Step: "retry:getBalance", Detail: "attempt 1 failed: connection reset"},
			{Step: "retry:getBalance", Detail: "success on attempt 2"},
		}, trace)
	})

	t.Run("Exhausted", func(t *testing.T) {
		store := mocks.NewStorage(t)
		store.On("GetBalance", mock.Anything, "cust-1").Return(int64(0), errors.New("db down")).Twice()

		a := NewAdapter(store, HashRiskSource{}, fastPolicy)
		_, trace, err := a.GetBalance(ctx, "cust-1")

		var lookupErr *LookupError
		require.ErrorAs(t, err, &lookupErr)
		assert.Equal(t, LabelGetBalance, lookupErr.Label)
		assert.Equal(t, 2, lookupErr.Attempts)
		assert.Equal(t, models.Trace{
			{Step: "retry:getBalance", Detail: "attempt 1 failed: db down"},
			{Step: "retry:getBalance", Detail: "attempt 2 failed: db down"},
		}, trace)
	})
}

func TestAdapterGetRiskSignals(t *testing.T) {
	ctx := context.Background()

	t.Run("Hash Source", func(t *testing.T) {
		a := NewAdapter(mocks.NewStorage(t), HashRiskSource{}, fastPolicy)
		risk, trace, err := a.GetRiskSignals(ctx, "11111111-1111-1111-1111-111111111111", "payee-1")

		require.NoError(t, err)
		assert.Equal(t, 2, risk.RecentDisputes)
		assert.Empty(t, trace)
	})

	t.Run("Rejected Request Is Not Retried", func(t *testing.T) {
		calls := 0
		src := riskFunc(func(context.Context, string, string) (models.RiskSignals, error) {
			calls++
			return models.RiskSignals{}, ErrRiskRequestRejected
		})

		a := NewAdapter(mocks.NewStorage(t), src, fastPolicy)
		_, trace, err := a.GetRiskSignals(ctx, "c", "p")

		require.ErrorIs(t, err, ErrRiskRequestRejected)
		assert.Equal(t, 1, calls)
		assert.Len(t, trace, 1)
	})
}

func TestAdapterCreateCase(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("InsertCase", mock.Anything, &models.Case{
			PaymentId: "pay-1",
			Status:    "OPEN:recent_disputes",
			CreatedAt: fixed,
		}).Return(nil)

		a := NewAdapter(mocks.NewStorage(t), HashRiskSource{}, fastPolicy)
		a.now = func() time.Time { return fixed }
		c, err := a.CreateCase(ctx, tx, "pay-1", models.ReasonRecentDisputes)

		require.NoError(t, err)
		assert.Equal(t, "recent_disputes", c.Reason())
	})

	t.Run("Storage Error", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("InsertCase", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		a := NewAdapter(mocks.NewStorage(t), HashRiskSource{}, fastPolicy)
		_, err := a.CreateCase(ctx, tx, "pay-1", models.ReasonManualReview)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create case for payment pay-1")
	})
}
