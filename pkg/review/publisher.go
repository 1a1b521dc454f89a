// Package review notifies downstream reviewers about newly opened cases.
package review

import (
	"context"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
)

// Message is the notification sent for every opened case.
type Message struct {
	PaymentId        string          `json:"paymentId"`
	CustomerId       string          `json:"customerId"`
	PayeeId          string          `json:"payeeId"`
	AmountMinorUnits int64           `json:"amountMinorUnits"`
	Currency         string          `json:"currency"`
	Decision         models.Decision `json:"decision"`
	Status           string          `json:"status"`
	Reason           string          `json:"reason"`
	OpenedAt         time.Time       `json:"openedAt"`
}

// NewMessage builds the notification for a case opened on a payment.
func NewMessage(p *models.PaymentRecord, c *models.Case) Message {
	return Message{
		PaymentId:        p.Id,
		CustomerId:       p.CustomerId,
		PayeeId:          p.PayeeId,
		AmountMinorUnits: p.AmountMinorUnits,
		Currency:         p.Currency,
		Decision:         p.Decision,
		Status:           c.Status,
		Reason:           c.Reason(),
		OpenedAt:         c.CreatedAt,
	}
}

// Publisher defines the interface for a component that hands cases over for review.
type Publisher interface {
	// Publish enqueues a case for asynchronous review.
	Publish(ctx context.Context, msg Message) error
}

// NoOpPublisher drops every message. It is used when no review queue is configured.
type NoOpPublisher struct{}

// Publish does nothing.
func (NoOpPublisher) Publish(context.Context, Message) error {
	return nil
}
