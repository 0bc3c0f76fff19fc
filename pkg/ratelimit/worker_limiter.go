// Package ratelimit provides rate limiting for the public API.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerSecond int // 초당 요청 수 (기본: 10)
	BurstSize         int // 버스트 허용량 (기본: 20)
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: 10,
		BurstSize:         20,
	}
}

// =============================================================================
// SlidingWindowLimiter - Redis 기반 Sliding Window Rate Limiter
// =============================================================================

// Lua script for atomic sliding window check
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	-- Remove old entries
	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	-- Count current requests
	local count = redis.call('ZCARD', key)

	if count < max_requests then
		-- Add new request
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	else
		-- Get oldest entry to calculate wait time
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		if #oldest > 0 then
			return -(oldest[2] + window_ms - now)
		end
		return 0
	end
`)

// SlidingWindowLimiter implements sliding window rate limiting.
// Redis keeps the window shared across instances; without Redis the
// window is kept in process.
type SlidingWindowLimiter struct {
	redis  *redis.Client
	limit  int           // requests per window, burst included
	window time.Duration // window size

	mu    sync.Mutex
	local map[string][]time.Time
	now   func() time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(redisClient *redis.Client, cfg *Config) *SlidingWindowLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SlidingWindowLimiter{
		redis:  redisClient,
		limit:  cfg.RequestsPerSecond + cfg.BurstSize,
		window: time.Second,
		local:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow checks if request is allowed and returns wait duration if not.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil {
		return l.allowLocal(key)
	}

	now := l.now()
	windowStart := now.Add(-l.window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	result, err := slidingWindowScript.Run(ctx, l.redis, []string{redisKey},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
	).Int64()

	if err != nil {
		// Redis 에러 시 로컬 윈도우로 대체
		return l.allowLocal(key)
	}

	if result == 1 {
		return true, 0
	}

	// result is negative wait time in milliseconds
	if result < 0 {
		return false, time.Duration(-result) * time.Millisecond
	}

	return false, l.window
}

func (l *SlidingWindowLimiter) allowLocal(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	hits := l.local[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.local[key] = kept
		return false, kept[0].Add(l.window).Sub(now)
	}

	l.local[key] = append(kept, now)
	return true, 0
}
