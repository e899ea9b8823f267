// Package models contains shared records used across the MarketPulse worker.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	UploadStatusQueued     = "queued"
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusFailed     = "failed"
)

// UploadJob is the durable record tracking one submitted file through the analysis pipeline.
// The API layer inserts it as queued; the worker moves it to processing and then to exactly one
// of completed or failed. Clients poll it by JobID.
type UploadJob struct {
	ID          uuid.UUID `db:"id"           json:"upload_id"`
	JobID       string    `db:"job_id"       json:"job_id"`
	UserID      string    `db:"user_id"      json:"user_id"`
	FileName    string    `db:"file_name"    json:"file_name"`
	FilePath    string    `db:"file_path"    json:"-"`
	Status      string    `db:"status"       json:"status"`
	ErrorReason *string   `db:"error_reason" json:"error_reason,omitempty"`
	RowCount    *int      `db:"row_count"    json:"row_count,omitempty"`
	ColumnCount *int      `db:"column_count" json:"column_count,omitempty"`
	Headers     []string  `db:"headers"      json:"headers,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// IsTerminal reports whether the job has reached completed or failed.
func (j *UploadJob) IsTerminal() bool {
	return j.Status == UploadStatusCompleted || j.Status == UploadStatusFailed
}
