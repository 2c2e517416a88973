package bus

import (
	"context"
	"log"
)

// NullBus is a no-op transport for single-node deployments.
type NullBus struct {
	logger *log.Logger
}

// NewNullBus creates a null bus.
func NewNullBus(logger *log.Logger) *NullBus {
	if logger == nil {
		logger = log.New(log.Writer(), "[NullBus] ", log.LstdFlags)
	}
	return &NullBus{logger: logger}
}

// Close is a no-op.
func (nb *NullBus) Close() error {
	return nil
}

// PublishAnalysisCompleted logs the notice but does not publish it.
func (nb *NullBus) PublishAnalysisCompleted(ctx context.Context, msg AnalysisMessage) error {
	nb.logger.Printf("Would publish analysis completion for data source %d (Redis disabled)", msg.DataSourceID)
	return nil
}

// ReadAnalysisStream blocks until the context is cancelled; no remote
// notices exist on a single node.
func (nb *NullBus) ReadAnalysisStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg AnalysisMessage) error) error {
	nb.logger.Printf("Would read analysis stream %s:%s (Redis disabled)", group, consumer)
	<-ctx.Done()
	return ctx.Err()
}

// HealthCheck always succeeds.
func (nb *NullBus) HealthCheck(ctx context.Context) error {
	return nil
}
