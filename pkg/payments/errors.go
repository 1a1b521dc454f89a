package payments

import (
	"fmt"

	"github.com/chris/payment-decisions/pkg/models"
)

// ValidationError is returned when a decision request is malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SignalLookupError is returned when the balance or risk lookups were
// exhausted. Nothing has been written when it is returned.
type SignalLookupError struct {
	// Trace holds the steps recorded before the failure.
	Trace models.Trace
	Err   error
}

func (e *SignalLookupError) Error() string {
	return fmt.Sprintf("signal lookup failed: %v", e.Err)
}

func (e *SignalLookupError) Unwrap() error {
	return e.Err
}

// TransactionError is returned when the recheck-and-commit step failed and was rolled back.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed: %v", e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
