package storage

import (
	"context"

	"github.com/chris/payment-decisions/pkg/models"
)

// CaseWriter persists review cases.
type CaseWriter interface {
	InsertCase(ctx context.Context, c *models.Case) error
}

// Tx is the set of operations available inside a storage transaction.
// Writes become visible only when the transaction commits.
type Tx interface {
	CaseWriter

	// GetBalance re-reads the balance inside the transaction. found is false if no row exists.
	GetBalance(ctx context.Context, customerID string) (available int64, found bool, err error)

	// SetBalance writes the new available balance, creating the row if it does not exist.
	SetBalance(ctx context.Context, customerID string, availableMinorUnits int64) error

	// InsertPayment appends a payment record.
	InsertPayment(ctx context.Context, p *models.PaymentRecord) error
}

// Transactor runs a function inside a single storage transaction.
type Transactor interface {
	// WithinTx commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
