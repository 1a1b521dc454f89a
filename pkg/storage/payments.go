package storage

import (
	"context"

	"github.com/chris/payment-decisions/pkg/models"
)

// PaymentReader provides read access to payments and cases for inspection.
type PaymentReader interface {
	// ListPayments returns the most recent payments of a customer, newest first.
	ListPayments(ctx context.Context, customerID string, limit int) ([]models.PaymentRecord, error)

	// GetCase returns the case opened for a payment, or ErrNotFound.
	GetCase(ctx context.Context, paymentID string) (*models.Case, error)
}
