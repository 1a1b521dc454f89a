package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		concurrent bool
	}{
		{"Serialization Failure", &pgconn.PgError{Code: codeSerializationFailure}, true},
		{"Deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, true},
		{"Unique Violation", fmt.Errorf("failed to insert payment: %w", &pgconn.PgError{Code: codeUniqueViolation}), true},
		{"Check Violation", &pgconn.PgError{Code: "23514"}, false},
		{"Plain Error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err)

			assert.Equal(t, tt.concurrent, errors.Is(err, storage.ErrConcurrentModification))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

// openTestStore connects to TEST_DATABASE_URL, skipping when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreIntegration(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	customer := uuid.NewString()

	t.Run("Balance Upsert", func(t *testing.T) {
		balance, err := store.GetBalance(ctx, customer)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)

		require.NoError(t, store.UpsertBalance(ctx, customer, 10000))
		require.NoError(t, store.UpsertBalance(ctx, customer, 7000))

		balance, err = store.GetBalance(ctx, customer)
		require.NoError(t, err)
		assert.Equal(t, int64(7000), balance)
	})

	t.Run("Commit Writes Payment And Case", func(t *testing.T) {
		paymentID := uuid.NewString()
		err := store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			available, found, err := tx.GetBalance(ctx, customer)
			require.NoError(t, err)
			require.True(t, found)
			if err := tx.SetBalance(ctx, customer, available-1000); err != nil {
				return err
			}
			if err := tx.InsertPayment(ctx, &models.PaymentRecord{
				Id: paymentID, CustomerId: customer, PayeeId: "acme", AmountMinorUnits: 1000,
				Currency: "USD", Decision: models.REVIEW, CreatedAt: time.Now(),
			}); err != nil {
				return err
			}
			return tx.InsertCase(ctx, &models.Case{
				PaymentId: paymentID, Status: models.OpenCaseStatus(models.ReasonRecentDisputes), CreatedAt: time.Now(),
			})
		})
		require.NoError(t, err)

		payments, err := store.ListPayments(ctx, customer, 5)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, models.REVIEW, payments[0].Decision)

		c, err := store.GetCase(ctx, paymentID)
		require.NoError(t, err)
		assert.Equal(t, models.ReasonRecentDisputes, c.Reason())
	})

	t.Run("Rollback Discards Writes", func(t *testing.T) {
		before, err := store.GetBalance(ctx, customer)
		require.NoError(t, err)

		boom := errors.New("boom")
		err = store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			require.NoError(t, tx.SetBalance(ctx, customer, 1))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		after, err := store.GetBalance(ctx, customer)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("Idempotency First Writer Wins", func(t *testing.T) {
		require.NoError(t, store.SaveResponse(ctx, customer, "k1", []byte(`{"decision":"allow"}`)))
		err := store.SaveResponse(ctx, customer, "k1", []byte(`{"decision":"block"}`))
		assert.ErrorIs(t, err, storage.ErrIdempotencyConflict)

		resp, found, err := store.FindResponse(ctx, customer, "k1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, `{"decision":"allow"}`, string(resp))
	})

	t.Run("Missing Case", func(t *testing.T) {
		_, err := store.GetCase(ctx, uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
