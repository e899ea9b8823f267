// Package handler holds the read-only HTTP handlers for polling upload jobs.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/marketpulse/internal/api/response"
	"github.com/kiranshivaraju/marketpulse/internal/store"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// UploadReader is the slice of store.Store the handlers need.
type UploadReader interface {
	GetUploadJob(ctx context.Context, jobID string) (*models.UploadJob, error)
	GetLatestAnalysisResult(ctx context.Context, uploadID uuid.UUID) (*models.AnalysisRecord, error)
}

// StatusCache is the slice of cache.Cache the handlers need.
type StatusCache interface {
	GetJobStatus(ctx context.Context, jobID string) (string, bool, error)
	GetResult(ctx context.Context, uploadID uuid.UUID) ([]byte, bool, error)
}

// NewGetUploadHandler returns GET /api/v1/uploads/{jobID}: the full UploadJob record.
func NewGetUploadHandler(st UploadReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadJob(w, r, st)
		if !ok {
			return
		}
		response.JSON(w, job)
	}
}

// NewGetStatusHandler returns GET /api/v1/uploads/{jobID}/status. The Redis mirror answers
// when it has the job; the store is the fallback.
func NewGetStatusHandler(st UploadReader, ca StatusCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		if ca != nil {
			status, found, err := ca.GetJobStatus(r.Context(), jobID)
			if err != nil {
				slog.Warn("status cache lookup failed", "job_id", jobID, "error", err)
			}
			if found {
				response.JSON(w, map[string]string{"job_id": jobID, "status": status, "source": "cache"})
				return
			}
		}

		job, ok := loadJob(w, r, st)
		if !ok {
			return
		}
		response.JSON(w, map[string]string{"job_id": jobID, "status": job.Status, "source": "store"})
	}
}

// NewGetResultHandler returns GET /api/v1/uploads/{jobID}/result: the most recent analysis
// record for the job's upload.
func NewGetResultHandler(st UploadReader, ca StatusCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := loadJob(w, r, st)
		if !ok {
			return
		}

		if ca != nil && job.Status == models.UploadStatusCompleted {
			if payload, found, err := ca.GetResult(r.Context(), job.ID); err == nil && found {
				response.Raw(w, payload)
				return
			}
		}

		rec, err := st.GetLatestAnalysisResult(r.Context(), job.ID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "RESULT_NOT_FOUND",
				"No analysis result for this upload yet", map[string]string{"status": job.Status})
			return
		}
		if err != nil {
			slog.Error("failed to load analysis result", "job_id", job.JobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load analysis result", nil)
			return
		}
		response.JSON(w, rec)
	}
}

func loadJob(w http.ResponseWriter, r *http.Request, st UploadReader) (*models.UploadJob, bool) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID is required", nil)
		return nil, false
	}

	job, err := st.GetUploadJob(r.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "UPLOAD_NOT_FOUND", "Upload job not found", nil)
		return nil, false
	}
	if err != nil {
		slog.Error("failed to load upload job", "job_id", jobID, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load upload job", nil)
		return nil, false
	}
	return job, true
}
