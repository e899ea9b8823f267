package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

const (
	// TaskField holds the JSON-encoded UploadTask.
	TaskField = "task"
	// EnqueuedAtField holds the RFC 3339 enqueue time.
	EnqueuedAtField = "enqueued_at"

	defaultMaxStreamLen = 10000
)

// Producer enqueues upload tasks.
type Producer struct {
	client       *StreamsClient
	maxStreamLen int64
}

func NewProducer(client *StreamsClient, maxStreamLen int64) *Producer {
	if maxStreamLen <= 0 {
		maxStreamLen = defaultMaxStreamLen
	}
	return &Producer{client: client, maxStreamLen: maxStreamLen}
}

// Enqueue publishes a task and returns its stream message ID.
func (p *Producer) Enqueue(ctx context.Context, task models.UploadTask) (string, error) {
	if task.JobID == "" {
		return "", fmt.Errorf("enqueue: job_id is required")
	}

	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("serialize task: %w", err)
	}

	id, err := p.client.XAdd(ctx, p.client.UploadStream(), p.maxStreamLen, map[string]any{
		TaskField:       string(data),
		EnqueuedAtField: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("enqueue task %s: %w", task.JobID, err)
	}
	return id, nil
}
