package storage

// Storage defines the root interface for the entire data layer.
// It composes all available storage operations. Components should depend on the
// more granular interfaces (BalanceReader, Transactor, etc.) instead of this one.
type Storage interface {
	BalanceReader
	BalanceWriter
	IdempotencyStore
	Transactor
	PaymentReader

	// Close releases the underlying connections.
	Close() error
}
