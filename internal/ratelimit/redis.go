package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter implements a sliding-window rate limit over a Redis
// sorted set, one set per actor.
type RedisRateLimiter struct {
	client     *redis.Client
	rejections prometheus.Counter
}

// NewRedisRateLimiter creates a new Redis-based rate limiter. rejections may
// be nil when metrics are disabled.
func NewRedisRateLimiter(client *redis.Client, rejections prometheus.Counter) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:     client,
		rejections: rejections,
	}
}

// AllowRequest checks if a request is allowed under the actor's limit.
// Returns (allowed, remaining, error).
func (rl *RedisRateLimiter) AllowRequest(ctx context.Context, actorID string, limit int, windowSeconds int) (bool, int, error) {
	now := time.Now()
	windowStart := now.Add(-time.Duration(windowSeconds) * time.Second)

	key := fmt.Sprintf("ratelimit:actor:%s", actorID)

	pipe := rl.client.Pipeline()

	// Drop entries outside the sliding window, record this request, count
	// what remains. The expiry at twice the window keeps idle keys from
	// accumulating.
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	countCmd := pipe.ZCount(ctx, key, "-inf", "+inf")
	pipe.Expire(ctx, key, time.Duration(windowSeconds*2)*time.Second)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to get count: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= int64(limit)
	if !allowed && rl.rejections != nil {
		rl.rejections.Inc()
	}

	return allowed, remaining, nil
}
