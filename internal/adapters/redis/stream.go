package redisad

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"croffers/internal/domain"
)

// StreamPublisher appends domain events to a redis stream. Consumers
// (mailers, analytics) read it with their own consumer groups.
type StreamPublisher struct {
	c      *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(c *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{c: c, stream: stream, maxLen: 100_000}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev domain.DomainEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	return p.c.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":         string(ev.Type),
			"aggregate_id": ev.AggregateID,
			"occurred_at":  ev.OccurredAt.Format(time.RFC3339Nano),
			"payload":      string(payload),
		},
	}).Err()
}
