package graph

import (
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/stretchr/testify/assert"
)

func TestDefaultDriverConfig(t *testing.T) {
	cfg := DefaultDriverConfig("neo4j://localhost:7687", "neo4j", "secret", 4)
	assert.Equal(t, 6, cfg.MaxPoolSize)
	assert.Equal(t, 15*time.Second, cfg.AcquireTimeout)

	assert.Equal(t, 3, DefaultDriverConfig("neo4j://x", "", "", 0).MaxPoolSize)
}

func TestDriverConfigApply(t *testing.T) {
	var conf config.Config
	DefaultDriverConfig("neo4j://x", "", "", 2).apply(&conf)

	assert.Equal(t, 4, conf.MaxConnectionPoolSize)
	assert.Equal(t, 15*time.Second, conf.ConnectionAcquisitionTimeout)
	assert.Equal(t, "mailparser", conf.UserAgent)
}
