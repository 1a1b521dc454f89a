package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
)

// FindResponse implements storage.IdempotencyStore.
func (s *Store) FindResponse(ctx context.Context, customerID, key string) ([]byte, bool, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.IdempotencyTableName),
		Key: map[string]types.AttributeValue{
			"customer_id":     &types.AttributeValueMemberS{Value: customerID},
			"idempotency_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get idempotency record from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, false, nil
	}

	var record models.IdempotencyRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return record.Response, true, nil
}

// SaveResponse implements storage.IdempotencyStore. The first writer wins.
func (s *Store) SaveResponse(ctx context.Context, customerID, key string, response []byte) error {
	now := s.clock()
	item, err := attributevalue.MarshalMap(models.IdempotencyRecord{
		CustomerId: customerID,
		Key:        key,
		Response:   response,
		CreatedAt:  now,
		TTL:        now.Add(IdempotencyTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.IdempotencyTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(customer_id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrIdempotencyConflict
		}
		return fmt.Errorf("failed to save idempotency record in DynamoDB: %w", err)
	}
	return nil
}
