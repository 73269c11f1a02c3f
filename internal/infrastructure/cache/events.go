package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
)

const (
	recentEventsKey = "leadline:events:recent"

	// DefaultFeedSize bounds the replay buffer handed to dashboard
	// clients when they connect.
	DefaultFeedSize = 50
)

// EventFeed keeps the most recent assignment events so dashboard clients
// joining mid-stream can backfill without a database query. The feed is
// best effort; the assignments table remains the source of truth.
type EventFeed struct {
	client *redis.Client
	logger *zap.Logger
	size   int
}

func NewEventFeed(client *redis.Client, logger *zap.Logger, size int) *EventFeed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &EventFeed{
		client: client,
		logger: logger,
		size:   size,
	}
}

// Push prepends the event and trims the feed to its configured size.
func (f *EventFeed) Push(ctx context.Context, ev assignment.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal assignment event: %w", err)
	}

	pipe := f.client.Pipeline()
	pipe.LPush(ctx, recentEventsKey, payload)
	pipe.LTrim(ctx, recentEventsKey, 0, int64(f.size-1))
	if _, err := pipe.Exec(ctx); err != nil {
		f.logger.Error("event feed push failed",
			zap.String("lead_id", ev.LeadID.String()),
			zap.Error(err))
		return fmt.Errorf("event feed push failed: %w", err)
	}
	return nil
}

// Recent returns up to n events, oldest first, ready to replay in order.
func (f *EventFeed) Recent(ctx context.Context, n int) ([]assignment.Event, error) {
	if n <= 0 || n > f.size {
		n = f.size
	}

	raw, err := f.client.LRange(ctx, recentEventsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("event feed read failed: %w", err)
	}

	events := make([]assignment.Event, 0, len(raw))
	// LRange returns newest first; walk backwards to replay in arrival order.
	for i := len(raw) - 1; i >= 0; i-- {
		var ev assignment.Event
		if err := json.Unmarshal([]byte(raw[i]), &ev); err != nil {
			f.logger.Warn("skipping malformed feed entry", zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
