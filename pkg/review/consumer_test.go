package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCases struct {
	mock.Mock
}

func (m *mockCases) GetCase(ctx context.Context, paymentID string) (*models.Case, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Case), args.Error(1)
}

func sqsMessage(t *testing.T, id string, msg Message) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestConsumerHandle(t *testing.T) {
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Open Case Is Logged For Review", func(t *testing.T) {
		logs := &bytes.Buffer{}
		cases := new(mockCases)
		cases.On("GetCase", mock.Anything, "p1").Return(&models.Case{
			PaymentId: "p1", Status: models.OpenCaseStatus(models.ReasonRecentDisputes), CreatedAt: opened,
		}, nil)
		consumer := NewConsumer(cases, slog.New(slog.NewTextHandler(logs, nil)))

		resp, err := consumer.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
			sqsMessage(t, "m1", Message{PaymentId: "p1", CustomerId: "c1", Decision: models.REVIEW}),
		}})

		require.NoError(t, err)
		assert.Empty(t, resp.BatchItemFailures)
		assert.Contains(t, logs.String(), "case awaiting review")
		assert.Contains(t, logs.String(), "reason=recent_disputes")
		cases.AssertExpectations(t)
	})

	t.Run("Storage Failure Is Redelivered", func(t *testing.T) {
		cases := new(mockCases)
		cases.On("GetCase", mock.Anything, "p1").Return(nil, errors.New("db down"))
		cases.On("GetCase", mock.Anything, "p2").Return(&models.Case{PaymentId: "p2", Status: "OPEN:manual_review"}, nil)
		consumer := NewConsumer(cases, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

		resp, err := consumer.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
			sqsMessage(t, "m1", Message{PaymentId: "p1"}),
			sqsMessage(t, "m2", Message{PaymentId: "p2"}),
		}})

		require.NoError(t, err)
		assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "m1"}}, resp.BatchItemFailures)
	})

	t.Run("Unknown Case Is Dropped", func(t *testing.T) {
		cases := new(mockCases)
		cases.On("GetCase", mock.Anything, "p1").Return(nil, storage.ErrNotFound)
		consumer := NewConsumer(cases, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

		resp, err := consumer.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
			sqsMessage(t, "m1", Message{PaymentId: "p1"}),
		}})

		require.NoError(t, err)
		assert.Empty(t, resp.BatchItemFailures)
	})

	t.Run("Malformed Message Is Dropped", func(t *testing.T) {
		cases := new(mockCases)
		consumer := NewConsumer(cases, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

		resp, err := consumer.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
			{MessageId: "m1", Body: "not json"},
		}})

		require.NoError(t, err)
		assert.Empty(t, resp.BatchItemFailures)
		cases.AssertNotCalled(t, "GetCase", mock.Anything, mock.Anything)
	})

	t.Run("Closed Case Is Skipped", func(t *testing.T) {
		logs := &bytes.Buffer{}
		cases := new(mockCases)
		cases.On("GetCase", mock.Anything, "p1").Return(&models.Case{PaymentId: "p1", Status: "CLOSED"}, nil)
		consumer := NewConsumer(cases, slog.New(slog.NewTextHandler(logs, nil)))

		_, err := consumer.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
			sqsMessage(t, "m1", Message{PaymentId: "p1"}),
		}})

		require.NoError(t, err)
		assert.Contains(t, logs.String(), "case already handled")
		assert.NotContains(t, logs.String(), "case awaiting review")
	})
}
