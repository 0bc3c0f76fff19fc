package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowLimiterLocal(t *testing.T) {
	l := NewSlidingWindowLimiter(nil, &Config{RequestsPerSecond: 2, BurstSize: 1})

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow(ctx, "10.0.0.1")
		assert.True(t, ok, "request %d", i)
	}

	ok, wait := l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	// other clients have their own window
	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok)

	clock = clock.Add(1100 * time.Millisecond)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
}
