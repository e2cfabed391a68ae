package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend shares cached context between server instances
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBackend wraps an established client. Keys are namespaced under keyPrefix.
func NewRedisBackend(client *redis.Client, keyPrefix string) *RedisBackend {
	return &RedisBackend{client: client, keyPrefix: keyPrefix}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.keyPrefix + key
	}
	return r.client.Del(ctx, prefixed...).Err()
}
