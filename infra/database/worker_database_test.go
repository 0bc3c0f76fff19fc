package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPostgresConfig(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "7")
	cfg := DefaultPostgresConfig()
	assert.Equal(t, int32(7), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
}

func TestDefaultRedisConfig(t *testing.T) {
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")
	cfg := DefaultRedisConfig()
	assert.Equal(t, 20, cfg.PoolSize)
	assert.Greater(t, cfg.ReadTimeout.Seconds(), 5.0)
}

func TestInvalidURLs(t *testing.T) {
	_, err := NewPostgres(context.Background(), "::not a url")
	assert.Error(t, err)

	_, err = NewRedis(context.Background(), "::not a url")
	assert.Error(t, err)
}
