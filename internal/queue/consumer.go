package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	defaultConsumerGroup = "upload-workers"
	defaultBlockTimeout  = 5 * time.Second
	defaultBatchSize     = 10
	defaultClaimMinIdle  = 15 * time.Minute
	maxPendingCheck      = 100
)

// Consumer reads upload tasks for one worker process.
type Consumer struct {
	client        *StreamsClient
	consumerGroup string
	consumerID    string
	blockTimeout  time.Duration
	batchSize     int64
	claimMinIdle  time.Duration
	logger        *slog.Logger
}

type ConsumerConfig struct {
	ConsumerGroup string
	ConsumerID    string
	BlockTimeout  time.Duration
	BatchSize     int64
	// ClaimMinIdle is how long a delivered task may stay unacknowledged before
	// another consumer takes it over.
	ClaimMinIdle time.Duration
}

// Delivery is a task read from the stream together with its message ID.
type Delivery struct {
	MessageID  string
	Task       models.UploadTask
	EnqueuedAt time.Time
}

func NewConsumer(client *StreamsClient, cfg ConsumerConfig, logger *slog.Logger) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Consumer{
		client:        client,
		consumerGroup: cfg.ConsumerGroup,
		consumerID:    cfg.ConsumerID,
		blockTimeout:  cfg.BlockTimeout,
		batchSize:     cfg.BatchSize,
		claimMinIdle:  cfg.ClaimMinIdle,
		logger:        logger,
	}
	if c.consumerGroup == "" {
		c.consumerGroup = defaultConsumerGroup
	}
	if c.blockTimeout <= 0 {
		c.blockTimeout = defaultBlockTimeout
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
	if c.claimMinIdle <= 0 {
		c.claimMinIdle = defaultClaimMinIdle
	}
	return c, nil
}

// Initialize creates the consumer group.
func (c *Consumer) Initialize(ctx context.Context) error {
	return c.client.CreateConsumerGroup(ctx, c.client.UploadStream(), c.consumerGroup)
}

// Read returns reclaimed tasks abandoned by dead consumers if there are any, otherwise
// blocks for new ones. An empty result with a nil error means the block timed out.
func (c *Consumer) Read(ctx context.Context) ([]Delivery, error) {
	if reclaimed := c.reclaimPending(ctx); len(reclaimed) > 0 {
		return reclaimed, nil
	}

	stream := c.client.UploadStream()
	streams, err := c.client.XReadGroup(ctx, c.consumerGroup, c.consumerID, stream, c.batchSize, c.blockTimeout)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read from stream %s: %w", stream, err)
	}

	var out []Delivery
	for _, s := range streams {
		out = append(out, c.parseMessages(ctx, s.Messages)...)
	}
	return out, nil
}

// Acknowledge removes a delivery from the pending list.
func (c *Consumer) Acknowledge(ctx context.Context, d Delivery) error {
	return c.client.XAck(ctx, c.client.UploadStream(), c.consumerGroup, d.MessageID)
}

// Extend resets the idle time of a delivery that is still being processed, so other
// consumers do not reclaim it. It must be called more often than ClaimMinIdle.
func (c *Consumer) Extend(ctx context.Context, d Delivery) error {
	ids, err := c.client.XClaimJustID(ctx, c.client.UploadStream(), c.consumerGroup, c.consumerID, d.MessageID)
	if err != nil {
		return fmt.Errorf("extend task %s: %w", d.MessageID, err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("extend task %s: no longer pending", d.MessageID)
	}
	return nil
}

func (c *Consumer) reclaimPending(ctx context.Context) []Delivery {
	stream := c.client.UploadStream()
	pending, err := c.client.XPendingExt(ctx, stream, c.consumerGroup, maxPendingCheck)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("list pending tasks", "error", err)
		}
		return nil
	}

	var ids []string
	for _, entry := range pending {
		if entry.Idle >= c.claimMinIdle {
			ids = append(ids, entry.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	msgs, err := c.client.XClaim(ctx, stream, c.consumerGroup, c.consumerID, c.claimMinIdle, ids...)
	if err != nil {
		c.logger.Warn("claim pending tasks", "error", err)
		return nil
	}
	if len(msgs) > 0 {
		c.logger.Info("reclaimed abandoned tasks", "count", len(msgs))
	}
	return c.parseMessages(ctx, msgs)
}

// parseMessages decodes stream messages. Malformed messages are acknowledged and
// dropped so they are not redelivered forever.
func (c *Consumer) parseMessages(ctx context.Context, msgs []redis.XMessage) []Delivery {
	out := make([]Delivery, 0, len(msgs))
	for _, msg := range msgs {
		d, err := parseMessage(msg)
		if err != nil {
			c.logger.Error("dropping malformed task", "message_id", msg.ID, "error", err)
			if ackErr := c.client.XAck(ctx, c.client.UploadStream(), c.consumerGroup, msg.ID); ackErr != nil {
				c.logger.Warn("ack malformed task", "message_id", msg.ID, "error", ackErr)
			}
			continue
		}
		out = append(out, d)
	}
	return out
}

func parseMessage(msg redis.XMessage) (Delivery, error) {
	raw, ok := msg.Values[TaskField].(string)
	if !ok {
		return Delivery{}, errors.New("missing task field")
	}

	var task models.UploadTask
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return Delivery{}, fmt.Errorf("decode task: %w", err)
	}
	if task.JobID == "" {
		return Delivery{}, errors.New("task has no job_id")
	}

	d := Delivery{MessageID: msg.ID, Task: task}
	if s, ok := msg.Values[EnqueuedAtField].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			d.EnqueuedAt = t
		}
	}
	return d, nil
}
