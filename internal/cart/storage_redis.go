package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps one visitor's storage in a Redis hash. Every write
// pushes the hash expiry forward by the session TTL.
type RedisStorage struct {
	client    *redis.Client
	hashKey   string
	expiresIn time.Duration
}

// NewRedisStorage scopes storage to sessionID.
func NewRedisStorage(client *redis.Client, sessionID string, expiresIn time.Duration) *RedisStorage {
	return &RedisStorage{
		client:    client,
		hashKey:   fmt.Sprintf("salon:storage:%s", sessionID),
		expiresIn: expiresIn,
	}
}

// RedisFactory builds per-session RedisStorage values sharing client.
func RedisFactory(client *redis.Client, expiresIn time.Duration) StorageFactory {
	return func(sessionID string) Storage {
		return NewRedisStorage(client, sessionID, expiresIn)
	}
}

func (s *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cart: redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hashKey, key, value)
		if s.expiresIn > 0 {
			pipe.Expire(ctx, s.hashKey, s.expiresIn)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cart: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hashKey, key).Err(); err != nil {
		return fmt.Errorf("cart: redis remove %s: %w", key, err)
	}
	return nil
}
