package dynamodb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/payment-decisions/pkg/models"
)

func balanceKey(customerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"customer_id": &types.AttributeValueMemberS{Value: customerID},
	}
}

// getBalanceRecord reads a balance with a strongly consistent read. It
// returns nil when the customer has no balance row.
func (s *Store) getBalanceRecord(ctx context.Context, customerID string) (*models.CustomerBalance, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.BalancesTableName),
		Key:            balanceKey(customerID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var balance models.CustomerBalance
	if err := attributevalue.UnmarshalMap(result.Item, &balance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balance: %w", err)
	}
	return &balance, nil
}

// GetBalance implements storage.BalanceReader. A customer without a balance row has zero available.
func (s *Store) GetBalance(ctx context.Context, customerID string) (int64, error) {
	balance, err := s.getBalanceRecord(ctx, customerID)
	if err != nil {
		return 0, err
	}
	if balance == nil {
		return 0, nil
	}
	return balance.AvailableMinorUnits, nil
}

// UpsertBalance implements storage.BalanceWriter.
func (s *Store) UpsertBalance(ctx context.Context, customerID string, availableMinorUnits int64) error {
	_, err := s.Client.UpdateItem(ctx, balanceUpdate(s.BalancesTableName, customerID, availableMinorUnits, s.clock().Format(timeFormat)))
	if err != nil {
		return fmt.Errorf("failed to upsert balance in DynamoDB: %w", err)
	}
	return nil
}

func balanceUpdate(table, customerID string, available int64, updatedAt string) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:        aws.String(table),
		Key:              balanceKey(customerID),
		UpdateExpression: aws.String("SET available_minor_units = :available, updated_at = :updated_at ADD version :inc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":available":  &types.AttributeValueMemberN{Value: strconv.FormatInt(available, 10)},
			":updated_at": &types.AttributeValueMemberS{Value: updatedAt},
			":inc":        &types.AttributeValueMemberN{Value: "1"},
		},
	}
}
