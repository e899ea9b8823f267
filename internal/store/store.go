package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrJobNotClaimable is returned by ClaimUploadJob when the job is terminal or is being
// processed by a live worker.
var ErrJobNotClaimable = errors.New("upload job not claimable")

// ErrInvalidTransition is returned when a status change would regress or skip the lifecycle.
var ErrInvalidTransition = errors.New("invalid upload job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUploadJob(ctx context.Context, job *models.UploadJob) error
	GetUploadJob(ctx context.Context, jobID string) (*models.UploadJob, error)
	ClaimUploadJob(ctx context.Context, jobID string, lease time.Duration) (*models.UploadJob, error)
	TouchUploadJob(ctx context.Context, jobID string) error
	UpdateUploadJobStatus(ctx context.Context, jobID string, status string, opts ...JobUpdateOption) error

	CreateAnalysisResult(ctx context.Context, rec *models.AnalysisRecord) error
	GetLatestAnalysisResult(ctx context.Context, uploadID uuid.UUID) (*models.AnalysisRecord, error)

	ListTrendsBetween(ctx context.Context, from, to time.Time) ([]models.ExternalTrend, error)
}

type jobUpdateParams struct {
	ErrorReason *string
	RowCount    *int
	ColumnCount *int
	Headers     []string
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorReason(reason string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorReason = &reason
	}
}

// WithShape attaches the cleaned dataset's dimensions and header list.
func WithShape(rows, columns int, headers []string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.RowCount = &rows
		p.ColumnCount = &columns
		p.Headers = headers
	}
}

// ApplyJobUpdateOptions resolves options into their values. Test doubles use it to inspect
// what a caller attached.
func ApplyJobUpdateOptions(opts ...JobUpdateOption) (reason *string, rows, columns *int, headers []string) {
	p := &jobUpdateParams{}
	for _, opt := range opts {
		opt(p)
	}
	return p.ErrorReason, p.RowCount, p.ColumnCount, p.Headers
}
