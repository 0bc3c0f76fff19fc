// Package mongodb archives parsed emails in MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const connectTimeout = 10 * time.Second

// ClientConfig holds the archive connection settings.
type ClientConfig struct {
	URL string
	// Archive writes come from the parse workers; reads from the API.
	MaxPoolSize uint64
}

// DefaultClientConfig sizes the pool for the given number of parse workers.
func DefaultClientConfig(url string, workers int) ClientConfig {
	if workers < 1 {
		workers = 1
	}
	return ClientConfig{URL: url, MaxPoolSize: uint64(workers) + 4}
}

// clientOptions keeps archive writes acknowledged by the majority so a
// result reported as stored survives a primary failover.
func clientOptions(cfg ClientConfig) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.URL).
		SetAppName("mailparser").
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(time.Minute).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority())
}

// NewClient connects to MongoDB and pings it.
func NewClient(ctx context.Context, cfg ClientConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}
