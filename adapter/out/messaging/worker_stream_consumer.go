package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailparser_server/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeadLetterPrefix is prepended to a stream name to form its dead-letter stream.
const DeadLetterPrefix = "dlq:"

// JobHandler processes jobs from streams.
type JobHandler interface {
	Handle(ctx context.Context, stream string, data []byte) error
}

// Consumer reads parse jobs from Redis Streams through a consumer group.
// Entries whose handler fails stay pending; the claim loop retries them and
// moves them to the dead-letter stream after MaxDeliveries.
type Consumer struct {
	client   *redis.Client
	group    string
	consumer string
	streams  []string
	handler  JobHandler
	log      zerolog.Logger
	prom     *metrics.Metrics

	batchSize     int64
	block         time.Duration
	claimInterval time.Duration
	claimIdle     time.Duration
	maxDeliveries int64
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Group    string
	Consumer string
	Streams  []string
	Handler  JobHandler
	Logger   zerolog.Logger

	// Optional
	BatchSize     int64
	Block         time.Duration
	ClaimInterval time.Duration
	ClaimIdle     time.Duration
	MaxDeliveries int64
}

// NewConsumer creates a new Consumer.
func NewConsumer(client *redis.Client, cfg *ConsumerConfig) *Consumer {
	c := &Consumer{
		client:        client,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		streams:       cfg.Streams,
		handler:       cfg.Handler,
		log:           cfg.Logger.With().Str("component", "stream_consumer").Logger(),
		prom:          metrics.Get(),
		batchSize:     cfg.BatchSize,
		block:         cfg.Block,
		claimInterval: cfg.ClaimInterval,
		claimIdle:     cfg.ClaimIdle,
		maxDeliveries: cfg.MaxDeliveries,
	}
	if c.batchSize <= 0 {
		c.batchSize = 10
	}
	if c.block <= 0 {
		c.block = 5 * time.Second
	}
	if c.claimInterval <= 0 {
		c.claimInterval = 30 * time.Second
	}
	if c.claimIdle <= 0 {
		c.claimIdle = 2 * time.Minute
	}
	if c.maxDeliveries <= 0 {
		c.maxDeliveries = 3
	}
	return c
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().
		Str("group", c.group).
		Str("consumer", c.consumer).
		Strs("streams", c.streams).
		Msg("starting consumer")

	for _, stream := range c.streams {
		if err := c.ensureGroup(ctx, stream); err != nil {
			c.log.Warn().Err(err).Str("stream", stream).Msg("error creating consumer group")
		}
	}

	go c.claimLoop(ctx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := c.read(ctx)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error().Err(err).Msg("error reading from streams")
			time.Sleep(time.Second)
			continue
		}

		for _, s := range result {
			for _, msg := range s.Messages {
				c.handle(ctx, s.Stream, msg)
			}
		}
	}
}

// handle runs the handler and acks on success.
func (c *Consumer) handle(ctx context.Context, stream string, msg redis.XMessage) bool {
	if err := c.dispatch(ctx, stream, msg); err != nil {
		c.prom.JobsTotal.WithLabelValues("stream", "pending").Inc()
		c.log.Error().
			Err(err).
			Str("stream", stream).
			Str("id", msg.ID).
			Msg("error processing message")
		return false
	}

	if err := c.client.XAck(ctx, stream, c.group, msg.ID).Err(); err != nil {
		c.log.Error().
			Err(err).
			Str("stream", stream).
			Str("id", msg.ID).
			Msg("error acknowledging message")
		return false
	}
	return true
}

func (c *Consumer) claimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, stream := range c.streams {
				c.claimStuck(ctx, stream)
			}
		}
	}
}

// claimStuck takes over entries idle longer than claimIdle. Entries already
// delivered maxDeliveries times go to the dead-letter stream instead.
func (c *Consumer) claimStuck(ctx context.Context, stream string) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  c.group,
		Idle:   c.claimIdle,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Error().Err(err).Str("stream", stream).Msg("error getting pending messages")
		}
		return
	}

	for _, p := range pending {
		if p.RetryCount >= c.maxDeliveries {
			c.log.Warn().
				Str("stream", stream).
				Str("id", p.ID).
				Int64("deliveries", p.RetryCount).
				Msg("message exceeded max deliveries, moving to DLQ")

			if err := c.deadLetter(ctx, stream, p.ID); err != nil {
				c.log.Error().Err(err).Str("id", p.ID).Msg("error moving message to DLQ")
				continue
			}
			c.client.XAck(ctx, stream, c.group, p.ID)
			c.prom.JobsTotal.WithLabelValues("stream", "dead_letter").Inc()
			continue
		}

		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.claimIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			c.log.Error().Err(err).Str("id", p.ID).Msg("error claiming message")
			continue
		}

		for _, msg := range claimed {
			if c.handle(ctx, stream, msg) {
				c.log.Info().Str("stream", stream).Str("id", msg.ID).Msg("reprocessed pending message")
			}
		}
	}
}

func (c *Consumer) ensureGroup(ctx context.Context, stream string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) read(ctx context.Context) ([]redis.XStream, error) {
	if len(c.streams) == 0 {
		return nil, redis.Nil
	}

	args := make([]string, len(c.streams)*2)
	for i, stream := range c.streams {
		args[i] = stream
		args[len(c.streams)+i] = ">"
	}

	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  args,
		Count:    c.batchSize,
		Block:    c.block,
	}).Result()
}

func (c *Consumer) dispatch(ctx context.Context, stream string, msg redis.XMessage) error {
	data, err := entryData(msg)
	if err != nil {
		return err
	}
	return c.handler.Handle(ctx, stream, data)
}

// entryData returns the "data" field of a stream entry.
func entryData(msg redis.XMessage) ([]byte, error) {
	data, ok := msg.Values["data"]
	if !ok {
		return nil, fmt.Errorf("invalid message format: missing data field")
	}
	s, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("invalid message format: data is not a string")
	}
	return []byte(s), nil
}

// deadLetter copies an entry to dlq:{stream} with failure metadata.
func (c *Consumer) deadLetter(ctx context.Context, stream, id string) error {
	entries, err := c.client.XRange(ctx, stream, id, id).Result()
	if err != nil {
		return fmt.Errorf("failed to read message for DLQ: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("message %s not found in stream %s", id, stream)
	}

	values := map[string]interface{}{
		"original_stream": stream,
		"original_id":     id,
		"failed_at":       time.Now().UTC().Format(time.RFC3339),
		"consumer":        c.consumer,
		"group":           c.group,
	}
	for k, v := range entries[0].Values {
		values["original_"+k] = v
	}

	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterPrefix + stream,
		Values: values,
	}).Err()
}
