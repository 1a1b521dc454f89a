package review

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.SendMessageOutput)
	return out, args.Error(1)
}

func testMessage() Message {
	opened := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewMessage(
		&models.PaymentRecord{
			Id:               "pay-1",
			CustomerId:       "cust-1",
			PayeeId:          "payee-1",
			AmountMinorUnits: 25000,
			Currency:         "USD",
			Decision:         models.REVIEW,
		},
		&models.Case{PaymentId: "pay-1", Status: "OPEN:amount_above_daily_threshold", CreatedAt: opened},
	)
}

func TestNewMessage(t *testing.T) {
	msg := testMessage()
	assert.Equal(t, "pay-1", msg.PaymentId)
	assert.Equal(t, models.ReasonAmountAboveDailyThreshold, msg.Reason)
	assert.Equal(t, models.REVIEW, msg.Decision)
}

func TestSQSPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		client := new(mockSQS)
		client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			var got Message
			if err := json.Unmarshal([]byte(*in.MessageBody), &got); err != nil {
				return false
			}
			return *in.QueueUrl == "https://sqs.local/reviews" &&
				got.PaymentId == "pay-1" &&
				*in.MessageAttributes["reason"].StringValue == "amount_above_daily_threshold"
		})).Return(&sqs.SendMessageOutput{}, nil)

		err := NewSQSPublisher(client, "https://sqs.local/reviews").Publish(ctx, testMessage())

		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Send Error", func(t *testing.T) {
		client := new(mockSQS)
		client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		err := NewSQSPublisher(client, "https://sqs.local/reviews").Publish(ctx, testMessage())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send message to SQS")
	})

	t.Run("NoOp", func(t *testing.T) {
		assert.NoError(t, NoOpPublisher{}.Publish(ctx, testMessage()))
	})
}
