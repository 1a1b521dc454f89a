// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Postgres error codes that mean a concurrent writer got there first.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// Store implements storage.Storage on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// Open connects to databaseURL and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool. The schema must already be applied.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// GetBalance implements storage.BalanceReader.
func (s *Store) GetBalance(ctx context.Context, customerID string) (int64, error) {
	var available int64
	err := s.pool.QueryRow(ctx,
		`SELECT available_minor_units FROM balances WHERE customer_id = $1`, customerID,
	).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return available, nil
}

// UpsertBalance implements storage.BalanceWriter.
func (s *Store) UpsertBalance(ctx context.Context, customerID string, availableMinorUnits int64) error {
	return setBalance(ctx, s.pool, customerID, availableMinorUnits, s.now().UTC())
}

// FindResponse implements storage.IdempotencyStore.
func (s *Store) FindResponse(ctx context.Context, customerID, key string) ([]byte, bool, error) {
	var resp []byte
	err := s.pool.QueryRow(ctx,
		`SELECT response FROM idempotency_records WHERE customer_id = $1 AND idempotency_key = $2`,
		customerID, key,
	).Scan(&resp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return resp, true, nil
}

// SaveResponse implements storage.IdempotencyStore.
func (s *Store) SaveResponse(ctx context.Context, customerID, key string, response []byte) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_records (customer_id, idempotency_key, response, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (customer_id, idempotency_key) DO NOTHING`,
		customerID, key, response, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrIdempotencyConflict
	}
	return nil
}

// ListPayments implements storage.PaymentReader.
func (s *Store) ListPayments(ctx context.Context, customerID string, limit int) ([]models.PaymentRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, customer_id, payee_id, amount_minor_units, currency, decision, created_at
		 FROM payments WHERE customer_id = $1
		 ORDER BY created_at DESC, seq DESC LIMIT $2`,
		customerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := []models.PaymentRecord{}
	for rows.Next() {
		var p models.PaymentRecord
		if err := rows.Scan(&p.Id, &p.CustomerId, &p.PayeeId, &p.AmountMinorUnits, &p.Currency, &p.Decision, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// GetCase implements storage.PaymentReader.
func (s *Store) GetCase(ctx context.Context, paymentID string) (*models.Case, error) {
	var c models.Case
	err := s.pool.QueryRow(ctx,
		`SELECT payment_id, status, created_at FROM cases WHERE payment_id = $1`, paymentID,
	).Scan(&c.PaymentId, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("case for payment %s: %w", paymentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return &c, nil
}

// WithinTx implements storage.Transactor. The balance row read through the
// Tx is locked with SELECT ... FOR UPDATE until commit or rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer pgTx.Rollback(context.WithoutCancel(ctx))

	if err := fn(ctx, &tx{tx: pgTx, now: s.now}); err != nil {
		return mapError(err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// mapError tags errors caused by a concurrent writer with storage.ErrConcurrentModification.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return fmt.Errorf("%w: %w", storage.ErrConcurrentModification, err)
		}
	}
	return err
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func setBalance(ctx context.Context, e execer, customerID string, available int64, now time.Time) error {
	_, err := e.Exec(ctx,
		`INSERT INTO balances (customer_id, available_minor_units, version, updated_at)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (customer_id) DO UPDATE SET
		     available_minor_units = EXCLUDED.available_minor_units,
		     version = balances.version + 1,
		     updated_at = EXCLUDED.updated_at`,
		customerID, available, now,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// tx implements storage.Tx on a pgx.Tx.
type tx struct {
	tx  pgx.Tx
	now func() time.Time
}

func (t *tx) GetBalance(ctx context.Context, customerID string) (int64, bool, error) {
	var available int64
	err := t.tx.QueryRow(ctx,
		`SELECT available_minor_units FROM balances WHERE customer_id = $1 FOR UPDATE`, customerID,
	).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get balance for update: %w", err)
	}
	return available, true, nil
}

func (t *tx) SetBalance(ctx context.Context, customerID string, availableMinorUnits int64) error {
	return setBalance(ctx, t.tx, customerID, availableMinorUnits, t.now().UTC())
}

func (t *tx) InsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO payments (id, customer_id, payee_id, amount_minor_units, currency, decision, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.Id, p.CustomerId, p.PayeeId, p.AmountMinorUnits, p.Currency, string(p.Decision), p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (t *tx) InsertCase(ctx context.Context, c *models.Case) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO cases (payment_id, status, created_at) VALUES ($1, $2, $3)`,
		c.PaymentId, c.Status, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}
	return nil
}
