// Package queue carries upload tasks from the web tier to workers over Redis Streams.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamsClient wraps a Redis client with the stream operations the queue needs.
type StreamsClient struct {
	client *redis.Client
	prefix string
}

// NewStreamsClient creates a StreamsClient from an existing Redis client.
func NewStreamsClient(client *redis.Client, prefix string) *StreamsClient {
	if prefix == "" {
		prefix = "marketpulse"
	}
	return &StreamsClient{client: client, prefix: prefix}
}

// UploadStream returns the stream carrying upload tasks.
func (c *StreamsClient) UploadStream() string {
	return fmt.Sprintf("%s:uploads", c.prefix)
}

func (c *StreamsClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// CreateConsumerGroup creates a consumer group for a stream if it doesn't exist.
func (c *StreamsClient) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *StreamsClient) XAdd(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error) {
	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
}

func (c *StreamsClient) XReadGroup(ctx context.Context, group, consumer, stream string, count int64, block time.Duration) ([]redis.XStream, error) {
	return c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
}

func (c *StreamsClient) XAck(ctx context.Context, stream, group string, ids ...string) error {
	return c.client.XAck(ctx, stream, group, ids...).Err()
}

func (c *StreamsClient) XPendingExt(ctx context.Context, stream, group string, count int64) ([]redis.XPendingExt, error) {
	return c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
}

func (c *StreamsClient) XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]redis.XMessage, error) {
	return c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
}

// XClaimJustID transfers ids to consumer and resets their idle time without returning bodies.
func (c *StreamsClient) XClaimJustID(ctx context.Context, stream, group, consumer string, ids ...string) ([]string, error) {
	return c.client.XClaimJustID(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		Messages: ids,
	}).Result()
}
