package storage

import "context"

// IdempotencyStore keeps the response produced for each (customer, key) pair.
type IdempotencyStore interface {
	// FindResponse returns the stored response body, if any.
	FindResponse(ctx context.Context, customerID, key string) ([]byte, bool, error)

	// SaveResponse stores a response body. The first writer wins; later writers get ErrIdempotencyConflict.
	SaveResponse(ctx context.Context, customerID, key string, response []byte) error
}
