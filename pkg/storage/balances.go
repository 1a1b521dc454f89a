package storage

import "context"

// BalanceReader reads balances outside of any transaction.
type BalanceReader interface {
	// GetBalance returns the available balance of a customer in minor units.
	// A customer without a balance row has a balance of zero.
	GetBalance(ctx context.Context, customerID string) (int64, error)
}

// BalanceWriter sets balances directly. It is meant for seeding and operations tooling.
type BalanceWriter interface {
	UpsertBalance(ctx context.Context, customerID string, availableMinorUnits int64) error
}
