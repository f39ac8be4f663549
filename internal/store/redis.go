package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each document as a single string key.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis creates a Redis-backed document store. It does not dial; use Ping
// to verify connectivity.
func NewRedis(opts RedisOptions) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisWithClient(client, opts.Prefix)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) key(name string) string {
	return r.prefix + name
}

// Read implements Backend.
func (r *RedisBackend) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return data, nil
}

// Write implements Backend. Documents never expire.
func (r *RedisBackend) Write(ctx context.Context, name string, body []byte) error {
	if err := r.client.Set(ctx, r.key(name), body, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

// Ping implements Backend.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close implements Backend.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
