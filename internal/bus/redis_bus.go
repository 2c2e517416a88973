package bus

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const analysisStream = "gallery:analysis"

// RedisBus carries analysis notices over a Redis Stream.
type RedisBus struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisBus connects to Redis and verifies the connection.
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Writer(), "[RedisBus] ", log.LstdFlags)
	}

	return &RedisBus{client: client, logger: logger}, nil
}

// Close closes the Redis connection.
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishAnalysisCompleted appends the notice to the analysis stream.
func (rb *RedisBus) PublishAnalysisCompleted(ctx context.Context, msg AnalysisMessage) error {
	fields := map[string]interface{}{
		"node_id":        msg.NodeID,
		"case_id":        msg.CaseID,
		"data_source_id": msg.DataSourceID,
		"timestamp":      msg.Timestamp,
	}

	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: analysisStream,
		Values: fields,
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish analysis completion: %w", err)
	}

	rb.logger.Printf("Published analysis completion for data source %d", msg.DataSourceID)
	return nil
}

// CreateConsumerGroup creates the stream's consumer group if missing.
func (rb *RedisBus) CreateConsumerGroup(ctx context.Context, group string) error {
	result := rb.client.XGroupCreateMkStream(ctx, analysisStream, group, "0")
	if err := result.Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("failed to create consumer group %s: %w", group, err)
		}
	}
	return nil
}

// ReadAnalysisStream reads analysis notices with a consumer group until the
// context is cancelled. Messages that fail to decode are logged as
// unrecognized and acknowledged so they are not redelivered forever.
func (rb *RedisBus) ReadAnalysisStream(ctx context.Context, group, consumer string, handler func(ctx context.Context, msg AnalysisMessage) error) error {
	if err := rb.CreateConsumerGroup(ctx, group); err != nil {
		return err
	}

	rb.logger.Printf("Starting analysis stream reader (group: %s, consumer: %s)", group, consumer)

	for {
		select {
		case <-ctx.Done():
			rb.logger.Printf("Analysis stream reader stopping")
			return ctx.Err()
		default:
			result := rb.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{analysisStream, ">"},
				Count:    10,
				Block:    1 * time.Second,
			})

			if err := result.Err(); err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				rb.logger.Printf("Error reading analysis stream: %v", err)
				time.Sleep(5 * time.Second)
				continue
			}

			for _, stream := range result.Val() {
				for _, message := range stream.Messages {
					msg, err := decodeAnalysisMessage(message.Values)
					if err != nil {
						rb.logger.Printf("SEVERE: Unrecognized analysis stream message %s: %v", message.ID, err)
					} else if err := handler(ctx, msg); err != nil {
						rb.logger.Printf("Error processing message %s: %v", message.ID, err)
						continue
					}

					if err := rb.client.XAck(ctx, stream.Stream, group, message.ID).Err(); err != nil {
						rb.logger.Printf("Error acknowledging message %s: %v", message.ID, err)
					}
				}
			}
		}
	}
}

func decodeAnalysisMessage(values map[string]interface{}) (AnalysisMessage, error) {
	var msg AnalysisMessage

	nodeID, ok := values["node_id"].(string)
	if !ok || nodeID == "" {
		return msg, fmt.Errorf("missing node_id")
	}
	msg.NodeID = nodeID

	if caseID, ok := values["case_id"].(string); ok {
		msg.CaseID = caseID
	}

	rawDS, ok := values["data_source_id"].(string)
	if !ok {
		return msg, fmt.Errorf("missing data_source_id")
	}
	dsID, err := strconv.ParseInt(rawDS, 10, 64)
	if err != nil {
		return msg, fmt.Errorf("bad data_source_id %q: %w", rawDS, err)
	}
	msg.DataSourceID = dsID

	if rawTS, ok := values["timestamp"].(string); ok {
		if ts, err := strconv.ParseInt(rawTS, 10, 64); err == nil {
			msg.Timestamp = ts
		}
	}
	return msg, nil
}

// TrimStream caps the analysis stream length to keep memory bounded.
func (rb *RedisBus) TrimStream(ctx context.Context, maxLen int64) error {
	result := rb.client.XTrimMaxLen(ctx, analysisStream, maxLen)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to trim analysis stream: %w", err)
	}
	return nil
}

// HealthCheck pings Redis.
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}
