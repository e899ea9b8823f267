package models

import "github.com/google/uuid"

// UploadTask is the queue payload that triggers one pipeline run.
type UploadTask struct {
	JobID            string    `json:"job_id"`
	UserID           string    `json:"user_id"`
	UploadID         uuid.UUID `json:"upload_id"`
	FilePath         string    `json:"file_path"`
	OriginalFilename string    `json:"original_filename"`
}
