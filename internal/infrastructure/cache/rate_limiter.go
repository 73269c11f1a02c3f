package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const rateLimitPrefix = "leadline:ratelimit:"

// maxFallbackKeys bounds the local limiter map during long redis outages.
const maxFallbackKeys = 10000

// RateLimiter enforces a sliding-window limit per key. Webhook ingestion
// keys it by source address so one misbehaving integration cannot starve
// the rest. When redis is unreachable the limiter degrades to a per-key
// in-process token bucket, so admission stays bounded on a single node
// instead of failing open entirely.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger

	mu       sync.Mutex
	fallback map[string]*rate.Limiter
}

func NewRateLimiter(client *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client:   client,
		logger:   logger,
		fallback: make(map[string]*rate.Limiter),
	}
}

// Allow records an attempt under key and reports whether it fits inside
// limit per window. Denied attempts are not counted against the window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	now := time.Now()
	windowStart := now.Add(-window)
	rateLimitKey := rateLimitPrefix + key

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, rateLimitKey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, rateLimitKey)

	member := fmt.Sprintf("%d-%d", now.UnixNano(), now.Nanosecond()%1000)
	pipe.ZAdd(ctx, rateLimitKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})
	pipe.Expire(ctx, rateLimitKey, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("rate limiter falling back to local window",
			zap.String("key", key),
			zap.Error(err))
		return r.allowLocal(key, limit, window), nil
	}

	// countCmd saw the window before this attempt was added.
	if countCmd.Val() >= int64(limit) {
		r.client.ZRem(ctx, rateLimitKey, member)
		r.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", countCmd.Val()),
			zap.Int("limit", limit))
		return false, nil
	}
	return true, nil
}

// allowLocal answers from a per-key token bucket sized to the same budget.
// Buckets persist across the outage; once redis answers again the shared
// window takes over.
func (r *RateLimiter) allowLocal(key string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.fallback[key]
	if !ok {
		if len(r.fallback) >= maxFallbackKeys {
			r.fallback = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		r.fallback[key] = lim
	}
	return lim.Allow()
}

// Remaining reports how many attempts key has left in the current window.
func (r *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	rateLimitKey := rateLimitPrefix + key

	if err := r.client.ZRemRangeByScore(ctx, rateLimitKey, "-inf",
		strconv.FormatInt(windowStart.UnixNano(), 10)).Err(); err != nil {
		return 0, fmt.Errorf("rate limiter cleanup failed: %w", err)
	}

	count, err := r.client.ZCard(ctx, rateLimitKey).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limiter count failed: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the window for a key.
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, rateLimitPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limiter reset failed: %w", err)
	}
	return nil
}
