package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter is a fixed-window counter: the first request of a window
// starts a key that expires after the window, later requests increment it.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedis creates a limiter allowing limit requests per window.
func NewRedis(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

// Take implements Limiter.
func (r *RedisLimiter) Take(ctx context.Context, key string) (Result, error) {
	k := redisKeyPrefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, r.window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	reset := ttl.Val()
	if reset < 0 {
		reset = r.window
	}

	return Result{
		Allowed:    count <= r.limit,
		Limit:      r.limit,
		Remaining:  max(r.limit-count, 0),
		ResetAfter: reset,
	}, nil
}

// Close closes the Redis client.
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
