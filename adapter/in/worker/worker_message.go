package worker

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

const (
	// JobParseEmail parses one raw message through the full pipeline.
	JobParseEmail JobType = "parse_email"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`

	// StreamID is the Redis stream entry the message was read from.
	StreamID string `json:"-"`
}

func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// ParseEmailPayload carries a raw RFC 822 message. Raw is base64 in JSON.
type ParseEmailPayload struct {
	Source   string `json:"source"`
	SourceID string `json:"source_id,omitempty"`
	Raw      []byte `json:"raw"`
}

// NewParseMessage builds a parse_email job.
func NewParseMessage(source, sourceID string, raw []byte) *Message {
	return NewMessage(JobParseEmail, map[string]any{
		"source":    source,
		"source_id": sourceID,
		"raw":       raw,
	})
}
