package messaging

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryData(t *testing.T) {
	data, err := entryData(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": `{"type":"parse_email"}`}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"parse_email"}`, string(data))

	_, err = entryData(redis.XMessage{ID: "1-1", Values: map[string]interface{}{}})
	assert.Error(t, err)

	_, err = entryData(redis.XMessage{ID: "1-2", Values: map[string]interface{}{"data": 5}})
	assert.Error(t, err)
}

func TestNewConsumerDefaults(t *testing.T) {
	c := NewConsumer(nil, &ConsumerConfig{Group: "g", Consumer: "c", Streams: []string{"mail:parse"}})
	assert.Equal(t, int64(10), c.batchSize)
	assert.Equal(t, int64(3), c.maxDeliveries)
	assert.Positive(t, c.block)
	assert.Positive(t, c.claimIdle)
}
