package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fairdial/leadline-backend/internal/infrastructure/config"
)

const connectTimeout = 5 * time.Second

// NewClient connects to Redis and verifies it answers. Redis backs the
// ingestion rate limiter and the recent-assignments feed; the assignment
// engine itself never touches it.
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis connected",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB))

	return client, nil
}
