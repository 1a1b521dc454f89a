package review

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
)

// CaseReader looks up the case a review message refers to.
type CaseReader interface {
	GetCase(ctx context.Context, paymentID string) (*models.Case, error)
}

// Consumer takes review messages off the queue and hands the cases that
// are still open to the review intake log.
type Consumer struct {
	Cases  CaseReader
	Logger *slog.Logger
}

// NewConsumer creates a Consumer.
func NewConsumer(cases CaseReader, logger *slog.Logger) *Consumer {
	return &Consumer{Cases: cases, Logger: logger}
}

// Handle processes a batch of SQS messages. Messages that failed on a
// storage error are reported back so SQS redelivers only those.
func (c *Consumer) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, record := range event.Records {
		if err := c.handleMessage(ctx, record); err != nil {
			c.Logger.ErrorContext(ctx, "failed to process review message",
				slog.String("message_id", record.MessageId),
				slog.Any("error", err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp, nil
}

func (c *Consumer) handleMessage(ctx context.Context, record events.SQSMessage) error {
	var msg Message
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		// A malformed message will never parse; redelivering it is pointless.
		c.Logger.WarnContext(ctx, "dropping malformed review message",
			slog.String("message_id", record.MessageId),
			slog.Any("error", err))
		return nil
	}

	cs, err := c.Cases.GetCase(ctx, msg.PaymentId)
	if errors.Is(err, storage.ErrNotFound) {
		c.Logger.WarnContext(ctx, "review message for unknown case",
			slog.String("payment_id", msg.PaymentId))
		return nil
	}
	if err != nil {
		return err
	}

	if !strings.HasPrefix(cs.Status, models.CaseStatusOpenPrefix) {
		c.Logger.InfoContext(ctx, "case already handled",
			slog.String("payment_id", cs.PaymentId),
			slog.String("status", cs.Status))
		return nil
	}

	c.Logger.InfoContext(ctx, "case awaiting review",
		slog.String("payment_id", cs.PaymentId),
		slog.String("customer_id", msg.CustomerId),
		slog.String("payee_id", msg.PayeeId),
		slog.Int64("amount_minor_units", msg.AmountMinorUnits),
		slog.String("currency", msg.Currency),
		slog.String("decision", string(msg.Decision)),
		slog.String("reason", cs.Reason()))
	return nil
}
