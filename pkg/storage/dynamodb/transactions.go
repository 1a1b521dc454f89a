package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/payment-decisions/pkg/models"
	"github.com/chris/payment-decisions/pkg/storage"
)

// WithinTx implements storage.Transactor. DynamoDB has no interactive
// transactions, so writes made through the Tx are buffered and committed
// with a single TransactWriteItems call once fn returns. Every balance
// write is conditioned on the version read inside the Tx; if another
// writer got there first the whole commit fails with
// storage.ErrConcurrentModification. Returning an error from fn discards
// the buffer.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	t := &tx{store: s, versions: make(map[string]*int64)}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if len(t.items) == 0 {
		return nil
	}

	slog.Log(ctx, slog.LevelDebug, "committing transaction", "items", len(t.items))

	_, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: t.items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, reason := range tce.CancellationReasons {
				if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
					return fmt.Errorf("%w: %w", storage.ErrConcurrentModification, err)
				}
			}
		}
		return fmt.Errorf("failed to execute transaction: %w", err)
	}
	return nil
}

// tx buffers writes for a single TransactWriteItems call.
type tx struct {
	store *Store
	items []types.TransactWriteItem
	// versions holds the balance version observed per customer, nil when
	// the customer had no balance row.
	versions map[string]*int64
}

func (t *tx) GetBalance(ctx context.Context, customerID string) (int64, bool, error) {
	balance, err := t.store.getBalanceRecord(ctx, customerID)
	if err != nil {
		return 0, false, err
	}
	if balance == nil {
		t.versions[customerID] = nil
		return 0, false, nil
	}
	version := balance.Version
	t.versions[customerID] = &version
	return balance.AvailableMinorUnits, true, nil
}

func (t *tx) SetBalance(ctx context.Context, customerID string, availableMinorUnits int64) error {
	version, read := t.versions[customerID]
	if !read {
		return fmt.Errorf("balance of %s must be read before it is written", customerID)
	}

	in := balanceUpdate(t.store.BalancesTableName, customerID, availableMinorUnits, t.store.clock().Format(timeFormat))
	update := &types.Update{
		TableName:                 in.TableName,
		Key:                       in.Key,
		UpdateExpression:          in.UpdateExpression,
		ExpressionAttributeValues: in.ExpressionAttributeValues,
	}
	if version == nil {
		update.ConditionExpression = aws.String("attribute_not_exists(customer_id)")
	} else {
		update.ConditionExpression = aws.String("version = :version")
		update.ExpressionAttributeValues[":version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*version, 10)}
	}

	t.items = append(t.items, types.TransactWriteItem{Update: update})
	return nil
}

func (t *tx) InsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}
	t.items = append(t.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(t.store.PaymentsTableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})
	return nil
}

func (t *tx) InsertCase(ctx context.Context, c *models.Case) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("failed to marshal case: %w", err)
	}
	t.items = append(t.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(t.store.CasesTableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(payment_id)"),
		},
	})
	return nil
}
