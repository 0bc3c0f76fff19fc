package stream

import (
	"context"
	"errors"
	"testing"

	"mailparser_server/adapter/in/worker"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPublisher struct {
	streams map[string][][]byte
}

func (m *memPublisher) Publish(_ context.Context, stream string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if m.streams == nil {
		m.streams = map[string][][]byte{}
	}
	m.streams[stream] = append(m.streams[stream], data)
	return "1-0", nil
}

type memQueue struct{ msgs []*worker.Message }

func (q *memQueue) Enqueue(_ context.Context, msg *worker.Message) error {
	q.msgs = append(q.msgs, msg)
	return nil
}

func TestProducerConsumerRoundTrip(t *testing.T) {
	pub := &memPublisher{}
	p := NewProducer(pub, "")

	_, err := p.PublishParse(context.Background(), "imap", "99", []byte("raw mail"))
	require.NoError(t, err)
	require.Len(t, pub.streams[StreamMailParse], 1)

	q := &memQueue{}
	c := NewConsumer(q)
	require.NoError(t, c.Handle(context.Background(), StreamMailParse, pub.streams[StreamMailParse][0]))
	require.Len(t, q.msgs, 1)

	msg := q.msgs[0]
	assert.Equal(t, worker.JobParseEmail, msg.Type)

	payload, err := worker.ParsePayload[worker.ParseEmailPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "imap", payload.Source)
	assert.Equal(t, "99", payload.SourceID)
	assert.Equal(t, []byte("raw mail"), payload.Raw)
}

func TestConsumerRejectsBadEntries(t *testing.T) {
	c := NewConsumer(&memQueue{})
	assert.Error(t, c.Handle(context.Background(), StreamMailParse, []byte("not json")))
	assert.Error(t, c.Handle(context.Background(), StreamMailParse, []byte(`{"id":"1"}`)))
}

func TestProducerDeadLetter(t *testing.T) {
	pub := &memPublisher{}
	p := NewProducer(pub, StreamMailParse)

	msg := worker.NewParseMessage("gmail", "abc", []byte("x"))
	require.NoError(t, p.DeadLetter(context.Background(), msg, errors.New("parse failed")))

	entries := pub.streams[DeadLetterPrefix+StreamMailParse]
	require.Len(t, entries, 1)

	var job Job
	require.NoError(t, json.Unmarshal(entries[0], &job))
	assert.Equal(t, "parse failed", job.Payload["error"])
	_, leaked := msg.Payload["error"]
	assert.False(t, leaked)
}
