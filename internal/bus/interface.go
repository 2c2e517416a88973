// Package bus bridges analysis notifications between nodes working the same
// multi-user case. Local job completions are published to a Redis stream;
// other nodes' completions are replayed into the local dispatcher with
// remote origin. A null implementation serves single-node deployments.
package bus

import (
	"context"
	"io"
	"log"
)

// AnalysisMessage is one node's notice that it completed analysis of a data
// source.
type AnalysisMessage struct {
	NodeID       string `json:"node_id"`
	CaseID       string `json:"case_id"`
	DataSourceID int64  `json:"data_source_id"`
	Timestamp    int64  `json:"timestamp"`
}

// Bus is the inter-node notification transport.
type Bus interface {
	// PublishAnalysisCompleted announces a completed data source analysis.
	PublishAnalysisCompleted(ctx context.Context, msg AnalysisMessage) error

	// ReadAnalysisStream delivers analysis notices to handler until ctx is
	// cancelled. Consumers in the same group share the stream.
	ReadAnalysisStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg AnalysisMessage) error) error

	// HealthCheck verifies the transport connection.
	HealthCheck(ctx context.Context) error

	// Close closes the transport.
	Close() error
}

// NewBus creates a bus for the Redis URL. An empty URL, or a Redis that
// cannot be reached, yields a NullBus.
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	if redisBus, err := NewRedisBus(redisURL, logger); err == nil {
		return redisBus
	}

	return NewNullBus(logger)
}
