// Package graph keeps the contact graph in Neo4j.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// DriverConfig holds the connection settings of the contact graph.
type DriverConfig struct {
	URL      string
	Username string
	Password string
	// Each parsed email is one short write transaction, so the pool only
	// needs to cover the parse workers plus the API.
	MaxPoolSize    int
	AcquireTimeout time.Duration
}

// DefaultDriverConfig sizes the pool for the given number of parse workers.
func DefaultDriverConfig(url, username, password string, workers int) DriverConfig {
	if workers < 1 {
		workers = 1
	}
	return DriverConfig{
		URL:            url,
		Username:       username,
		Password:       password,
		MaxPoolSize:    workers + 2,
		AcquireTimeout: 15 * time.Second,
	}
}

func (c DriverConfig) auth() neo4j.AuthToken {
	if c.Username != "" && c.Password != "" {
		return neo4j.BasicAuth(c.Username, c.Password, "")
	}
	return neo4j.NoAuth()
}

func (c DriverConfig) apply(conf *config.Config) {
	if c.MaxPoolSize > 0 {
		conf.MaxConnectionPoolSize = c.MaxPoolSize
	}
	if c.AcquireTimeout > 0 {
		conf.ConnectionAcquisitionTimeout = c.AcquireTimeout
	}
	conf.UserAgent = "mailparser"
}

// NewDriver creates a Neo4j driver and verifies connectivity.
func NewDriver(ctx context.Context, cfg DriverConfig) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URL, cfg.auth(), cfg.apply)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}
	return driver, nil
}
