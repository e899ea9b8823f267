package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/marketpulse/internal/api/handler"
	"github.com/kiranshivaraju/marketpulse/internal/store"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	jobs      map[string]*models.UploadJob
	results   map[uuid.UUID]*models.AnalysisRecord
	jobErr    error
	resultErr error
}

func (m *mockReader) GetUploadJob(_ context.Context, jobID string) (*models.UploadJob, error) {
	if m.jobErr != nil {
		return nil, m.jobErr
	}
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (m *mockReader) GetLatestAnalysisResult(_ context.Context, uploadID uuid.UUID) (*models.AnalysisRecord, error) {
	if m.resultErr != nil {
		return nil, m.resultErr
	}
	rec, ok := m.results[uploadID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

type mockCache struct {
	statuses map[string]string
	results  map[uuid.UUID][]byte
	err      error
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID string) (string, bool, error) {
	if c.err != nil {
		return "", false, c.err
	}
	s, ok := c.statuses[jobID]
	return s, ok, nil
}

func (c *mockCache) GetResult(_ context.Context, uploadID uuid.UUID) ([]byte, bool, error) {
	p, ok := c.results[uploadID]
	return p, ok, nil
}

func newReader(status string) (*mockReader, *models.UploadJob) {
	rows, cols := 2, 2
	job := &models.UploadJob{
		ID:          uuid.New(),
		JobID:       "job-1",
		UserID:      "user-1",
		FileName:    "data.csv",
		FilePath:    "/tmp/uploads/abc",
		Status:      status,
		RowCount:    &rows,
		ColumnCount: &cols,
		Headers:     []string{"col1", "col2"},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	return &mockReader{
		jobs:    map[string]*models.UploadJob{"job-1": job},
		results: map[uuid.UUID]*models.AnalysisRecord{},
	}, job
}

func serve(t *testing.T, pattern string, h http.HandlerFunc, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	r.Get(pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestGetUpload_ReturnsJob(t *testing.T) {
	reader, job := newReader(models.UploadStatusCompleted)

	w, body := serve(t, "/uploads/{jobID}", handler.NewGetUploadHandler(reader), "/uploads/job-1")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, job.ID.String(), data["upload_id"])
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(2), data["row_count"])
	assert.Equal(t, []any{"col1", "col2"}, data["headers"])
	assert.NotContains(t, data, "file_path")
}

func TestGetUpload_NotFound(t *testing.T) {
	reader, _ := newReader(models.UploadStatusQueued)

	w, body := serve(t, "/uploads/{jobID}", handler.NewGetUploadHandler(reader), "/uploads/nope")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UPLOAD_NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestGetUpload_StoreError(t *testing.T) {
	reader, _ := newReader(models.UploadStatusQueued)
	reader.jobErr = errors.New("connection refused")

	w, body := serve(t, "/uploads/{jobID}", handler.NewGetUploadHandler(reader), "/uploads/job-1")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", body["error"].(map[string]any)["code"])
}

func TestGetStatus_PrefersCache(t *testing.T) {
	reader, _ := newReader(models.UploadStatusQueued)
	ca := &mockCache{statuses: map[string]string{"job-1": "processing"}}

	w, body := serve(t, "/uploads/{jobID}/status", handler.NewGetStatusHandler(reader, ca), "/uploads/job-1/status")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "processing", data["status"])
	assert.Equal(t, "cache", data["source"])
}

func TestGetStatus_FallsBackToStore(t *testing.T) {
	tests := []struct {
		name  string
		cache *mockCache
	}{
		{"cache miss", &mockCache{statuses: map[string]string{}}},
		{"cache error", &mockCache{err: errors.New("redis down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, _ := newReader(models.UploadStatusFailed)

			w, body := serve(t, "/uploads/{jobID}/status", handler.NewGetStatusHandler(reader, tt.cache), "/uploads/job-1/status")

			assert.Equal(t, http.StatusOK, w.Code)
			data := body["data"].(map[string]any)
			assert.Equal(t, "failed", data["status"])
			assert.Equal(t, "store", data["source"])
		})
	}
}

func TestGetResult_FromCache(t *testing.T) {
	reader, job := newReader(models.UploadStatusCompleted)
	ca := &mockCache{results: map[uuid.UUID][]byte{job.ID: []byte(`{"user_id":"user-1","processing_errors":null}`)}}

	w, body := serve(t, "/uploads/{jobID}/result", handler.NewGetResultHandler(reader, ca), "/uploads/job-1/result")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", body["data"].(map[string]any)["user_id"])
}

func TestGetResult_FromStore(t *testing.T) {
	reader, job := newReader(models.UploadStatusFailed)
	reader.results[job.ID] = &models.AnalysisRecord{
		UploadID:          job.ID,
		UserID:            "user-1",
		SummaryStatistics: map[string]any{"col1": map[string]any{"type": "text"}},
	}

	w, body := serve(t, "/uploads/{jobID}/result", handler.NewGetResultHandler(reader, &mockCache{}), "/uploads/job-1/result")

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, job.ID.String(), data["upload_id"])
	assert.Nil(t, data["sentiment_scores"])
}

func TestGetResult_NotReady(t *testing.T) {
	reader, _ := newReader(models.UploadStatusProcessing)

	w, body := serve(t, "/uploads/{jobID}/result", handler.NewGetResultHandler(reader, nil), "/uploads/job-1/result")

	assert.Equal(t, http.StatusNotFound, w.Code)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "RESULT_NOT_FOUND", errObj["code"])
	assert.Equal(t, "processing", errObj["details"].(map[string]any)["status"])
}
