package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/payment-decisions/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a stored response can be replayed.
const DefaultTTL = 24 * time.Hour

// RedisClient is the subset of the go-redis client used by RedisBackend.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisBackend keeps idempotency records in Redis with an expiry.
type RedisBackend struct {
	client RedisClient
	ttl    time.Duration
}

var _ storage.IdempotencyStore = (*RedisBackend)(nil)

// NewRedisBackend creates a RedisBackend. A non-positive ttl falls back to DefaultTTL.
func NewRedisBackend(client RedisClient, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisBackend{client: client, ttl: ttl}
}

func redisKey(customerID, key string) string {
	return fmt.Sprintf("idempotency:{%s}:%s", customerID, key)
}

// FindResponse implements storage.IdempotencyStore.
func (b *RedisBackend) FindResponse(ctx context.Context, customerID, key string) ([]byte, bool, error) {
	resp, err := b.client.Get(ctx, redisKey(customerID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get idempotency record from redis: %w", err)
	}
	return resp, true, nil
}

// SaveResponse implements storage.IdempotencyStore with SETNX, so the first writer wins.
func (b *RedisBackend) SaveResponse(ctx context.Context, customerID, key string, response []byte) error {
	ok, err := b.client.SetNX(ctx, redisKey(customerID, key), response, b.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save idempotency record to redis: %w", err)
	}
	if !ok {
		return storage.ErrIdempotencyConflict
	}
	return nil
}
