package statestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps handshake state in Redis so the consent round-trip
// survives process restarts and load-balanced callbacks.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("statestore: redis client is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("statestore: key is required")
	}
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("statestore: redis client is not configured")
	}
	raw, err := s.client.Get(ctx, strings.TrimSpace(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("statestore: redis client is not configured")
	}
	return s.client.Del(ctx, strings.TrimSpace(key)).Err()
}
