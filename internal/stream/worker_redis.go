package stream

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StreamMailParse = "mail:parse"
	SetMailSeen     = "mail:seen"

	// DeadLetterPrefix names the stream that takes jobs which exhausted retries.
	DeadLetterPrefix = "dlq:"
)

// RedisStream manages the consumer group of the parse stream.
type RedisStream struct {
	client *redis.Client
	group  string
}

func NewRedisStream(client *redis.Client, group string) *RedisStream {
	return &RedisStream{client: client, group: group}
}

func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}

// =============================================================================
// Seen set
// =============================================================================

// SeenSet records mailbox message IDs in a Redis set so a restarted poller
// does not queue the same message twice.
type SeenSet struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewSeenSet creates a seen set. A positive ttl expires the whole set after
// the last write.
func NewSeenSet(client *redis.Client, key string, ttl time.Duration) *SeenSet {
	if key == "" {
		key = SetMailSeen
	}
	return &SeenSet{client: client, key: key, ttl: ttl}
}

func (s *SeenSet) member(source, id string) string {
	return source + ":" + id
}

// MarkIfNew adds the ID and reports whether it was absent.
func (s *SeenSet) MarkIfNew(ctx context.Context, source, id string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, s.member(source, id)).Result()
	if err != nil {
		return false, err
	}
	if s.ttl > 0 {
		s.client.Expire(ctx, s.key, s.ttl)
	}
	return added == 1, nil
}

func (s *SeenSet) Forget(ctx context.Context, source, id string) error {
	return s.client.SRem(ctx, s.key, s.member(source, id)).Err()
}
