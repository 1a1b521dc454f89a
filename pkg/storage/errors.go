package storage

import "errors"

// ErrIdempotencyConflict is returned when a response is already stored for the same customer and key.
var ErrIdempotencyConflict = errors.New("idempotency key already used")

// ErrConcurrentModification is returned when a transaction lost an optimistic concurrency check.
var ErrConcurrentModification = errors.New("concurrent modification")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")
