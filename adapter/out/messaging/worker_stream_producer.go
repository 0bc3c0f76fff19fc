// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"mailparser_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// DefaultMaxLen caps every stream the producer writes. Trimming is approximate.
const DefaultMaxLen = 10000

// RedisProducer implements out.JobPublisher using Redis Streams.
type RedisProducer struct {
	client *redis.Client
	maxLen int64
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client, maxLen: DefaultMaxLen}
}

// Publish marshals payload and appends it under the "data" field.
func (p *RedisProducer) Publish(ctx context.Context, stream string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return id, nil
}

// Replay moves up to count entries from the dead-letter stream dlq back to
// stream and deletes them from dlq. It returns how many were moved.
func (p *RedisProducer) Replay(ctx context.Context, dlq, stream string, count int64) (int, error) {
	entries, err := p.client.XRangeN(ctx, dlq, "-", "+", count).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dlq, err)
	}

	moved := 0
	for _, e := range entries {
		data, ok := e.Values["original_data"].(string)
		if !ok {
			data, ok = e.Values["data"].(string)
		}
		if !ok {
			continue
		}
		if err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		}).Err(); err != nil {
			return moved, fmt.Errorf("failed to replay %s: %w", e.ID, err)
		}
		p.client.XDel(ctx, dlq, e.ID)
		moved++
	}

	return moved, nil
}

// Ensure RedisProducer implements out.JobPublisher
var _ out.JobPublisher = (*RedisProducer)(nil)
