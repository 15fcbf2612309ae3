package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raisedeck/accesslink/internal/repository"
)

const noncePrefix = "oauth:nonce:"

// RedisNonceStore implements StateNonceStore backed by Redis. SETNX gives
// atomic first-use detection across instances.
type RedisNonceStore struct {
	client redis.UniversalClient
}

var _ repository.StateNonceStore = (*RedisNonceStore)(nil)

// NewRedisNonceStore constructs a Redis-backed nonce store.
func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// Consume records the nonce and reports whether this was its first use.
func (s *RedisNonceStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	first, err := s.client.SetNX(ctx, noncePrefix+nonce, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	return first, nil
}

// NoopNonceStore is used when Redis is not configured; every nonce counts as
// first use.
type NoopNonceStore struct{}

var _ repository.StateNonceStore = NoopNonceStore{}

// Consume always reports first use.
func (NoopNonceStore) Consume(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
