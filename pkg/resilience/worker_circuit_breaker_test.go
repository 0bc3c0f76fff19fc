package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour

	var transitions []string
	cb := NewCircuitBreaker(cfg, zerolog.Nop(), func(name string, from, to gobreaker.State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := Execute(cb, func() (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
	}

	_, err := Execute(cb, func() (string, error) { return "ok", nil })
	assert.True(t, IsOpen(err))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestExecuteReturnsTypedValue(t *testing.T) {
	cb := NewCircuitBreaker(nil, zerolog.Nop())

	n, err := Execute(cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	s, err := Execute[string](nil, func() (string, error) { return "direct", nil })
	require.NoError(t, err)
	assert.Equal(t, "direct", s)
}
