package queue_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/marketpulse/internal/queue"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*queue.StreamsClient, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return queue.NewStreamsClient(rdb, "test"), rdb
}

func newConsumer(t *testing.T, client *queue.StreamsClient, id string, claimMinIdle time.Duration) *queue.Consumer {
	t.Helper()
	c, err := queue.NewConsumer(client, queue.ConsumerConfig{
		ConsumerGroup: "workers",
		ConsumerID:    id,
		BlockTimeout:  50 * time.Millisecond,
		ClaimMinIdle:  claimMinIdle,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func sampleTask(jobID string) models.UploadTask {
	return models.UploadTask{
		JobID:            jobID,
		UserID:           "user-1",
		UploadID:         uuid.New(),
		FilePath:         "/tmp/uploads/" + jobID,
		OriginalFilename: "sales.csv",
	}
}

func TestNewConsumer_RequiresID(t *testing.T) {
	client, _ := setup(t)
	_, err := queue.NewConsumer(client, queue.ConsumerConfig{}, nil)
	assert.Error(t, err)
}

func TestInitialize_Idempotent(t *testing.T) {
	client, _ := setup(t)
	c := newConsumer(t, client, "w1", time.Minute)
	assert.NoError(t, c.Initialize(context.Background()))
}

func TestEnqueueAndRead(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	c := newConsumer(t, client, "w1", time.Minute)
	p := queue.NewProducer(client, 0)

	task := sampleTask("job-1")
	id, err := p.Enqueue(ctx, task)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	deliveries, err := c.Read(ctx)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, id, deliveries[0].MessageID)
	assert.Equal(t, task, deliveries[0].Task)
	assert.False(t, deliveries[0].EnqueuedAt.IsZero())

	require.NoError(t, c.Acknowledge(ctx, deliveries[0]))
}

func TestRead_EmptyStreamTimesOut(t *testing.T) {
	client, _ := setup(t)
	c := newConsumer(t, client, "w1", time.Minute)

	deliveries, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deliveries)
}

func TestEnqueue_RequiresJobID(t *testing.T) {
	client, _ := setup(t)
	p := queue.NewProducer(client, 0)

	_, err := p.Enqueue(context.Background(), models.UploadTask{})
	assert.Error(t, err)
}

func TestRead_DropsMalformedMessages(t *testing.T) {
	client, rdb := setup(t)
	ctx := context.Background()
	c := newConsumer(t, client, "w1", time.Minute)

	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: client.UploadStream(),
		Values: map[string]any{queue.TaskField: "{not json"},
	}).Err())

	deliveries, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, deliveries)

	pending, err := rdb.XPending(ctx, client.UploadStream(), "workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestRead_ReclaimsAbandonedTasks(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	p := queue.NewProducer(client, 0)
	dead := newConsumer(t, client, "dead", time.Millisecond)
	alive := newConsumer(t, client, "alive", time.Millisecond)

	_, err := p.Enqueue(ctx, sampleTask("job-crash"))
	require.NoError(t, err)

	first, err := dead.Read(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(20 * time.Millisecond)

	reclaimed, err := alive.Read(ctx)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, first[0].MessageID, reclaimed[0].MessageID)
	assert.Equal(t, "job-crash", reclaimed[0].Task.JobID)
}

func TestRead_AcknowledgedTaskNotRedelivered(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	p := queue.NewProducer(client, 0)
	c := newConsumer(t, client, "w1", time.Millisecond)

	_, err := p.Enqueue(ctx, sampleTask("job-done"))
	require.NoError(t, err)

	deliveries, err := c.Read(ctx)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.NoError(t, c.Acknowledge(ctx, deliveries[0]))

	time.Sleep(10 * time.Millisecond)

	again, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestExtend_KeepsLiveTaskFromBeingReclaimed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client := queue.NewStreamsClient(rdb, "test")
	ctx := context.Background()

	start := time.Now().UTC()
	mr.SetTime(start)
	owner := newConsumer(t, client, "owner", 200*time.Millisecond)
	other := newConsumer(t, client, "other", 200*time.Millisecond)

	_, err := queue.NewProducer(client, 0).Enqueue(ctx, sampleTask("job-long"))
	require.NoError(t, err)
	first, err := owner.Read(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	mr.SetTime(start.Add(150 * time.Millisecond))
	require.NoError(t, owner.Extend(ctx, first[0]))

	mr.SetTime(start.Add(300 * time.Millisecond))
	stolen, err := other.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, stolen)

	mr.SetTime(start.Add(400 * time.Millisecond))
	reclaimed, err := other.Read(ctx)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, "job-long", reclaimed[0].Task.JobID)
}

func TestExtend_AcknowledgedTask(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()
	c := newConsumer(t, client, "w1", time.Minute)

	_, err := queue.NewProducer(client, 0).Enqueue(ctx, sampleTask("job-done"))
	require.NoError(t, err)
	deliveries, err := c.Read(ctx)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	require.NoError(t, c.Acknowledge(ctx, deliveries[0]))

	assert.Error(t, c.Extend(ctx, deliveries[0]))
}
