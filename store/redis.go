package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps the document under a single key.
type RedisBackend struct {
	client *redis.Client
	key    string
}

func NewRedisBackend(addr, key string) *RedisBackend {
	return NewRedisBackendFromClient(redis.NewClient(&redis.Options{Addr: addr}), key)
}

func NewRedisBackendFromClient(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

func (b *RedisBackend) Name() string { return "redis" }

// Ping checks the connection at startup.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write is a single SET, which redis applies atomically.
func (b *RedisBackend) Write(ctx context.Context, payload []byte) error {
	return b.client.Set(ctx, b.key, payload, 0).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
