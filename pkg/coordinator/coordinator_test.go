package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chris/payment-decisions/pkg/locks"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/orchestrator"
	"github.com/chris/payment-decisions/pkg/retry"
	"github.com/chris/payment-decisions/pkg/signals"
	"github.com/chris/payment-decisions/pkg/storage"
	"github.com/chris/payment-decisions/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(t *testing.T, tx *mocks.Tx, txErr error) *Coordinator {
	store := mocks.NewStorage(t)
	store.On("WithinTx", mock.Anything, mock.Anything).Return(
		func(ctx context.Context, fn func(context.Context, storage.Tx) error) error {
			if err := fn(ctx, tx); err != nil {
				return err
			}
			return txErr
		})

	c := New(locks.NewKeyedMutex(), store, signals.NewAdapter(store, signals.HashRiskSource{}, retry.DefaultPolicy()))
	c.newID = func() string { return "pay-1" }
	c.now = func() time.Time { return fixedNow }
	return c
}

func request(amount int64) models.DecisionRequest {
	return models.DecisionRequest{
		CustomerId:       "cust-1",
		PayeeId:          "payee-1",
		AmountMinorUnits: amount,
		Currency:         "USD",
		IdempotencyKey:   "k1",
	}
}

func provisional(decision models.Decision, reasons ...string) orchestrator.Provisional {
	if reasons == nil {
		reasons = []string{}
	}
	return orchestrator.Provisional{
		Decision:  decision,
		Reasons:   reasons,
		Trace:     models.Trace{{Step: "plan", Detail: "Check balance, risk, and limits"}},
		RequestID: "req-1",
	}
}

func paymentWith(decision models.Decision, amount int64) *models.PaymentRecord {
	return &models.PaymentRecord{
		Id:               "pay-1",
		CustomerId:       "cust-1",
		PayeeId:          "payee-1",
		AmountMinorUnits: amount,
		Currency:         "USD",
		Decision:         decision,
		CreatedAt:        fixedNow,
	}
}

func TestFinalize(t *testing.T) {
	ctx := context.Background()

	t.Run("Allow Debits Balance", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(10000), true, nil)
		tx.On("SetBalance", mock.Anything, "cust-1", int64(5000)).Return(nil)
		tx.On("InsertPayment", mock.Anything, paymentWith(models.ALLOW, 5000)).Return(nil)

		got, err := newTestCoordinator(t, tx, nil).Finalize(ctx, request(5000), provisional(models.ALLOW))

		require.NoError(t, err)
		assert.Equal(t, models.ALLOW, got.Decision)
		assert.Empty(t, got.Reasons)
		assert.Nil(t, got.Case)
		assert.Equal(t, "req-1", got.RequestID)
		assert.Len(t, got.Trace, 1)
		tx.AssertNotCalled(t, "InsertCase", mock.Anything, mock.Anything)
	})

	t.Run("Allow Creates Missing Balance Row", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(0), false, nil)
		tx.On("SetBalance", mock.Anything, "cust-1", int64(0)).Return(nil)
		tx.On("InsertPayment", mock.Anything, mock.Anything).Return(nil)

		got, err := newTestCoordinator(t, tx, nil).Finalize(ctx, request(0), provisional(models.ALLOW))

		require.NoError(t, err)
		assert.Equal(t, models.ALLOW, got.Decision)
	})

	t.Run("Allow Downgraded After Recheck", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(4000), true, nil)
		tx.On("InsertPayment", mock.Anything, paymentWith(models.BLOCK, 5000)).Return(nil)
		tx.On("InsertCase", mock.Anything, &models.Case{
			PaymentId: "pay-1",
			Status:    "OPEN:insufficient_funds",
			CreatedAt: fixedNow,
		}).Return(nil)

		c := newTestCoordinator(t, tx, nil)
		c.cases.(*signals.Adapter).SetClock(func() time.Time { return fixedNow })
		got, err := c.Finalize(ctx, request(5000), provisional(models.ALLOW))

		require.NoError(t, err)
		assert.Equal(t, models.BLOCK, got.Decision)
		assert.Equal(t, []string{models.ReasonInsufficientFunds}, got.Reasons)
		assert.Equal(t, models.TraceStep{Step: "lock:recheck", Detail: "insufficient after recheck"}, got.Trace[len(got.Trace)-1])
		require.NotNil(t, got.Case)
		assert.Equal(t, models.ReasonInsufficientFunds, got.Case.Reason())
		tx.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Review Is Never Changed", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(0), false, nil)
		tx.On("InsertPayment", mock.Anything, paymentWith(models.REVIEW, 5000)).Return(nil)
		tx.On("InsertCase", mock.Anything, mock.MatchedBy(func(c *models.Case) bool {
			return c.Status == "OPEN:recent_disputes"
		})).Return(nil)

		got, err := newTestCoordinator(t, tx, nil).Finalize(ctx, request(5000),
			provisional(models.REVIEW, models.ReasonRecentDisputes, models.ReasonAmountAboveDailyThreshold))

		require.NoError(t, err)
		assert.Equal(t, models.REVIEW, got.Decision)
		assert.Equal(t, []string{models.ReasonRecentDisputes, models.ReasonAmountAboveDailyThreshold}, got.Reasons)
		assert.Len(t, got.Trace, 1)
		tx.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Case Without Reasons Uses Manual Review", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(100), true, nil)
		tx.On("InsertPayment", mock.Anything, mock.Anything).Return(nil)
		tx.On("InsertCase", mock.Anything, mock.MatchedBy(func(c *models.Case) bool {
			return c.Status == "OPEN:manual_review"
		})).Return(nil)

		got, err := newTestCoordinator(t, tx, nil).Finalize(ctx, request(50), provisional(models.REVIEW))

		require.NoError(t, err)
		assert.Equal(t, models.ReasonManualReview, got.Case.Reason())
	})

	t.Run("Recheck Error", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(0), false, errors.New("db down"))

		_, err := newTestCoordinator(t, tx, nil).Finalize(ctx, request(5000), provisional(models.ALLOW))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to recheck balance")
	})

	t.Run("Payment Insert Error", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(10000), true, nil)
		tx.On("SetBalance", mock.Anything, "cust-1", int64(5000)).Return(nil)
		tx.On("InsertPayment", mock.Anything, mock.Anything).Return(errors.New("constraint"))

		_, err := newTestCoordinator(t, tx, nil).Finalize(ctx, request(5000), provisional(models.ALLOW))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to record payment")
	})

	t.Run("Commit Conflict", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(10000), true, nil)
		tx.On("SetBalance", mock.Anything, "cust-1", int64(5000)).Return(nil)
		tx.On("InsertPayment", mock.Anything, mock.Anything).Return(nil)

		_, err := newTestCoordinator(t, tx, storage.ErrConcurrentModification).
			Finalize(ctx, request(5000), provisional(models.ALLOW))

		assert.ErrorIs(t, err, storage.ErrConcurrentModification)
	})

	t.Run("Provisional Trace Is Not Mutated", func(t *testing.T) {
		tx := mocks.NewTx(t)
		tx.On("GetBalance", mock.Anything, "cust-1").Return(int64(0), true, nil)
		tx.On("InsertPayment", mock.Anything, mock.Anything).Return(nil)
		tx.On("InsertCase", mock.Anything, mock.Anything).Return(nil)

		p := provisional(models.ALLOW)
		_, err := newTestCoordinator(t, tx, nil).Finalize(ctx, request(5000), p)

		require.NoError(t, err)
		assert.Len(t, p.Trace, 1)
	})
}
