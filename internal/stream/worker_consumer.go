package stream

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"mailparser_server/adapter/in/worker"
)

// Consumer turns stream entries into worker messages.
// It implements messaging.JobHandler.
type Consumer struct {
	queue worker.Enqueuer
}

func NewConsumer(queue worker.Enqueuer) *Consumer {
	return &Consumer{queue: queue}
}

// Handle decodes one entry and hands it to the queue. An error leaves the
// entry pending so the stream consumer can claim it again.
func (c *Consumer) Handle(ctx context.Context, stream string, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("decode job from %s: %w", stream, err)
	}
	if job.Type == "" {
		return fmt.Errorf("job %s from %s has no type", job.ID, stream)
	}

	msg := &worker.Message{
		ID:        job.ID,
		Type:      job.Type,
		Payload:   job.Payload,
		Retries:   job.Retries,
		CreatedAt: job.CreatedAt,
	}
	return c.queue.Enqueue(ctx, msg)
}
