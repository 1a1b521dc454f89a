// Package idempotency replays the stored response of a request that was
// already processed for the same customer and idempotency key.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris/payment-decisions/pkg/storage"
)

// Store is the idempotency layer used by the payment pipeline.
type Store struct {
	backend storage.IdempotencyStore
	logger  *slog.Logger
}

// New creates a Store on top of a backend.
func New(backend storage.IdempotencyStore, logger *slog.Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// Find returns the response stored for (customerID, key), byte for byte.
func (s *Store) Find(ctx context.Context, customerID, key string) ([]byte, bool, error) {
	resp, found, err := s.backend.FindResponse(ctx, customerID, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return resp, found, nil
}

// Save stores the response of a completed request. It never fails: a
// concurrent writer that got there first wins, and storage errors are only
// logged, since the payment itself is already committed.
func (s *Store) Save(ctx context.Context, customerID, key string, response []byte) {
	err := s.backend.SaveResponse(ctx, customerID, key, response)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrIdempotencyConflict):
		s.logger.WarnContext(ctx, "idempotency record already exists",
			slog.String("customer_id", customerID),
			slog.String("idempotency_key", key),
		)
	default:
		s.logger.ErrorContext(ctx, "failed to save idempotency record",
			slog.String("customer_id", customerID),
			slog.String("idempotency_key", key),
			slog.Any("error", err),
		)
	}
}
