package stream

import (
	"context"
	"time"

	"mailparser_server/adapter/in/worker"
	"mailparser_server/core/port/out"
)

// Producer publishes worker jobs to the parse stream.
type Producer struct {
	publisher out.JobPublisher
	stream    string
}

func NewProducer(publisher out.JobPublisher, stream string) *Producer {
	if stream == "" {
		stream = StreamMailParse
	}
	return &Producer{publisher: publisher, stream: stream}
}

type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Retries   int            `json:"retries,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func jobFromMessage(msg *worker.Message) *Job {
	return &Job{
		ID:        msg.ID,
		Type:      msg.Type,
		Payload:   msg.Payload,
		Retries:   msg.Retries,
		CreatedAt: msg.CreatedAt,
	}
}

// Enqueue implements worker.Enqueuer.
func (p *Producer) Enqueue(ctx context.Context, msg *worker.Message) error {
	_, err := p.publisher.Publish(ctx, p.stream, jobFromMessage(msg))
	return err
}

// PublishParse queues one raw message for parsing.
func (p *Producer) PublishParse(ctx context.Context, source, sourceID string, raw []byte) (string, error) {
	return p.publisher.Publish(ctx, p.stream, jobFromMessage(worker.NewParseMessage(source, sourceID, raw)))
}

// DeadLetter records a job that exhausted its retries on the dead-letter
// stream of the parse stream.
func (p *Producer) DeadLetter(ctx context.Context, msg *worker.Message, cause error) error {
	job := jobFromMessage(msg)
	if cause != nil {
		job.Payload = copyPayload(msg.Payload)
		job.Payload["error"] = cause.Error()
	}
	_, err := p.publisher.Publish(ctx, DeadLetterPrefix+p.stream, job)
	return err
}

func copyPayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
