package cache

import (
	"context"
	"errors"
	"time"

	"github.com/classifieds/backend/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store shared between server instances
type RedisStore struct {
	client *RedisClient
}

// NewRedisStore wraps a connected client
func NewRedisStore(client *RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

// Name identifies the backend in logs and health output
func (r *RedisStore) Name() string {
	return "redis"
}

// Get returns the cached bytes; a missing key is a miss, not an error
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := telemetry.TraceCacheCall(ctx, r.Name(), "get", key)
	defer span.End()

	val, err := r.client.GetBytes(ctx, key)
	if errors.Is(err, redis.Nil) {
		telemetry.RecordCacheResult(span, false, 0)
		return nil, false, nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}

	telemetry.RecordCacheResult(span, true, len(val))
	return val, true, nil
}

// Set stores value with ttl
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := telemetry.TraceCacheCall(ctx, r.Name(), "set", key)
	defer span.End()

	if err := r.client.SetEx(ctx, key, value, ttl); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// InvalidatePrefix drops every key starting with prefix
func (r *RedisStore) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	return r.client.DeletePattern(ctx, prefix+"*")
}
