package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/marketpulse/internal/queue"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// TaskSource delivers tasks at least once. queue.Consumer implements it.
type TaskSource interface {
	Read(ctx context.Context) ([]queue.Delivery, error)
	Acknowledge(ctx context.Context, d queue.Delivery) error
	// Extend keeps a delivery that is still being processed from being handed to
	// another consumer.
	Extend(ctx context.Context, d queue.Delivery) error
}

// Processor runs one task.
type Processor interface {
	Process(ctx context.Context, task models.UploadTask) error
}

const defaultRetryDelay = time.Second

// Runner pulls tasks from a source and processes up to concurrency of them at once.
type Runner struct {
	source      TaskSource
	processor   Processor
	concurrency int
	retryDelay  time.Duration
	keepAlive   time.Duration
	logger      *slog.Logger
}

type RunnerOption func(*Runner)

// WithKeepAlive extends each in-flight delivery every interval. Zero disables it.
func WithKeepAlive(interval time.Duration) RunnerOption {
	return func(r *Runner) {
		r.keepAlive = interval
	}
}

func NewRunner(source TaskSource, processor Processor, concurrency int, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		source:      source,
		processor:   processor,
		concurrency: concurrency,
		retryDelay:  defaultRetryDelay,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads and dispatches tasks until ctx is cancelled, then waits for in-flight jobs.
// Tasks read but not yet started stay pending in the queue and are redelivered later.
func (r *Runner) Run(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(r.concurrency))
	var g errgroup.Group

	for ctx.Err() == nil {
		deliveries, err := r.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			r.logger.Error("failed to read tasks", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(r.retryDelay):
			}
			continue
		}

		for _, d := range deliveries {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				r.handle(ctx, d)
				return nil
			})
		}
	}

	r.logger.Info("runner stopping, waiting for in-flight jobs")
	return g.Wait()
}

func (r *Runner) handle(ctx context.Context, d queue.Delivery) {
	log := r.logger.With("message_id", d.MessageID, "job_id", d.Task.JobID)
	done := make(chan struct{})
	if r.keepAlive > 0 {
		go r.extendUntil(context.WithoutCancel(ctx), d, done, log)
	}
	err := r.processor.Process(ctx, d.Task)
	close(done)
	if err != nil {
		log.Error("job ended with error", "error", err)
	}
	if err := r.source.Acknowledge(context.WithoutCancel(ctx), d); err != nil {
		log.Error("failed to acknowledge task", "error", err)
	}
}

func (r *Runner) extendUntil(ctx context.Context, d queue.Delivery, done <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(r.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := r.source.Extend(ctx, d); err != nil {
				log.Warn("failed to extend task delivery", "error", err)
			}
		}
	}
}
