// Package dynamodb implements the storage interfaces on AWS DynamoDB.
package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/payment-decisions/pkg/storage"
)

// DynamoDBAPI is the subset of the DynamoDB client used by Store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// PaymentsByCustomerIndex is the GSI on the payments table keyed by
// customer_id and sorted by created_at.
const PaymentsByCustomerIndex = "customer_id-created_at-index"

// timeFormat matches how attributevalue marshals time.Time.
const timeFormat = time.RFC3339Nano

// IdempotencyTTL is how long an idempotency record lives before DynamoDB expires it.
const IdempotencyTTL = 24 * time.Hour

// Store implements the Storage interface using AWS DynamoDB.
type Store struct {
	Client               DynamoDBAPI
	BalancesTableName    string
	PaymentsTableName    string
	CasesTableName       string
	IdempotencyTableName string
	now                  func() time.Time
}

// New creates a new Store.
func New(client DynamoDBAPI, balancesTable, paymentsTable, casesTable, idempotencyTable string) *Store {
	return &Store{
		Client:               client,
		BalancesTableName:    balancesTable,
		PaymentsTableName:    paymentsTable,
		CasesTableName:       casesTable,
		IdempotencyTableName: idempotencyTable,
		now:                  time.Now,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error {
	return nil
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
