package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
)

// ListPayments implements storage.PaymentReader, newest first.
func (s *Store) ListPayments(ctx context.Context, customerID string, limit int) ([]models.PaymentRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.PaymentsTableName),
		IndexName:              aws.String(PaymentsByCustomerIndex),
		KeyConditionExpression: aws.String("customer_id = :customer_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":customer_id": &types.AttributeValueMemberS{Value: customerID},
		},
		ScanIndexForward: aws.Bool(false), // Sort by created_at in descending order
		Limit:            aws.Int32(int32(limit)),
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments by customer: %w", err)
	}

	payments := []models.PaymentRecord{}
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &payments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payments: %w", err)
	}
	return payments, nil
}

// GetCase implements storage.PaymentReader.
func (s *Store) GetCase(ctx context.Context, paymentID string) (*models.Case, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.CasesTableName),
		Key: map[string]types.AttributeValue{
			"payment_id": &types.AttributeValueMemberS{Value: paymentID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get case from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("case for payment %s: %w", paymentID, storage.ErrNotFound)
	}

	var c models.Case
	if err := attributevalue.UnmarshalMap(result.Item, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case: %w", err)
	}
	return &c, nil
}
