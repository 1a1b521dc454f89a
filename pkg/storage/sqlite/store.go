// Package sqlite implements the storage interfaces on SQLite. It backs local
// development and the end-to-end tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store implements storage.Storage on a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer. One connection also keeps an in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetBalance implements storage.BalanceReader.
func (s *Store) GetBalance(ctx context.Context, customerID string) (int64, error) {
	available, _, err := getBalance(ctx, s.db, customerID)
	return available, err
}

// UpsertBalance implements storage.BalanceWriter.
func (s *Store) UpsertBalance(ctx context.Context, customerID string, availableMinorUnits int64) error {
	return setBalance(ctx, s.db, customerID, availableMinorUnits, s.now().UTC())
}

// FindResponse implements storage.IdempotencyStore.
func (s *Store) FindResponse(ctx context.Context, customerID, key string) ([]byte, bool, error) {
	var resp []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT response FROM idempotency_records WHERE customer_id = ? AND idempotency_key = ?`,
		customerID, key,
	).Scan(&resp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return resp, true, nil
}

// SaveResponse implements storage.IdempotencyStore.
func (s *Store) SaveResponse(ctx context.Context, customerID, key string, response []byte) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency_records (customer_id, idempotency_key, response, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (customer_id, idempotency_key) DO NOTHING`,
		customerID, key, response, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	if n == 0 {
		return storage.ErrIdempotencyConflict
	}
	return nil
}

// ListPayments implements storage.PaymentReader.
func (s *Store) ListPayments(ctx context.Context, customerID string, limit int) ([]models.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, payee_id, amount_minor_units, currency, decision, created_at
		 FROM payments WHERE customer_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
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
	err := s.db.QueryRowContext(ctx,
		`SELECT payment_id, status, created_at FROM cases WHERE payment_id = ?`, paymentID,
	).Scan(&c.PaymentId, &c.Status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case for payment %s: %w", paymentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return &c, nil
}

// WithinTx implements storage.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &tx{tx: sqlTx, now: s.now}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBalance(ctx context.Context, q queryer, customerID string) (int64, bool, error) {
	var available int64
	err := q.QueryRowContext(ctx,
		`SELECT available_minor_units FROM balances WHERE customer_id = ?`, customerID,
	).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get balance: %w", err)
	}
	return available, true, nil
}

func setBalance(ctx context.Context, q queryer, customerID string, available int64, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO balances (customer_id, available_minor_units, version, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (customer_id) DO UPDATE SET
		     available_minor_units = excluded.available_minor_units,
		     version = balances.version + 1,
		     updated_at = excluded.updated_at`,
		customerID, available, now,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// tx implements storage.Tx on a *sql.Tx.
type tx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *tx) GetBalance(ctx context.Context, customerID string) (int64, bool, error) {
	return getBalance(ctx, t.tx, customerID)
}

func (t *tx) SetBalance(ctx context.Context, customerID string, availableMinorUnits int64) error {
	return setBalance(ctx, t.tx, customerID, availableMinorUnits, t.now().UTC())
}

func (t *tx) InsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO payments (id, customer_id, payee_id, amount_minor_units, currency, decision, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Id, p.CustomerId, p.PayeeId, p.AmountMinorUnits, p.Currency, string(p.Decision), p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (t *tx) InsertCase(ctx context.Context, c *models.Case) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO cases (payment_id, status, created_at) VALUES (?, ?, ?)`,
		c.PaymentId, c.Status, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}
	return nil
}
