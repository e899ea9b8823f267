package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/marketpulse/internal/store"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// --- mocks ---

type statusUpdate struct {
	JobID   string
	Status  string
	Reason  string
	Rows    *int
	Columns *int
	Headers []string
}

type mockStore struct {
	mu            sync.Mutex
	jobs          map[string]*models.UploadJob
	results       []*models.AnalysisRecord
	statusUpdates []statusUpdate
	trends        []models.ExternalTrend
	touches       int

	claimErr        error
	updateStatusErr error
	// createResultErrs are returned by successive CreateAnalysisResult calls.
	createResultErrs []error
	trendsErr        error
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[string]*models.UploadJob)}
}

func (s *mockStore) addJob(jobID, status string) *models.UploadJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &models.UploadJob{ID: uuid.New(), JobID: jobID, UserID: "user-1", Status: status}
	s.jobs[jobID] = job
	return job
}

func (s *mockStore) job(jobID string) models.UploadJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[jobID]
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateUploadJob(_ context.Context, job *models.UploadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	return nil
}

func (s *mockStore) GetUploadJob(_ context.Context, jobID string) (*models.UploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *mockStore) ClaimUploadJob(_ context.Context, jobID string, _ time.Duration) (*models.UploadJob, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if job.Status != models.UploadStatusQueued {
		return nil, store.ErrJobNotClaimable
	}
	job.Status = models.UploadStatusProcessing
	cp := *job
	return &cp, nil
}

func (s *mockStore) TouchUploadJob(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches++
	return nil
}

func (s *mockStore) UpdateUploadJobStatus(_ context.Context, jobID string, status string, opts ...store.JobUpdateOption) error {
	if s.updateStatusErr != nil {
		return s.updateStatusErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reason, rows, cols, headers := store.ApplyJobUpdateOptions(opts...)
	upd := statusUpdate{JobID: jobID, Status: status, Rows: rows, Columns: cols, Headers: headers}
	if reason != nil {
		upd.Reason = *reason
	}
	s.statusUpdates = append(s.statusUpdates, upd)
	if job, ok := s.jobs[jobID]; ok {
		job.Status = status
		job.ErrorReason = reason
		job.RowCount, job.ColumnCount, job.Headers = rows, cols, headers
	}
	return nil
}

func (s *mockStore) CreateAnalysisResult(_ context.Context, rec *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.createResultErrs) > 0 {
		err := s.createResultErrs[0]
		s.createResultErrs = s.createResultErrs[1:]
		if err != nil {
			return err
		}
	}
	s.results = append(s.results, rec)
	return nil
}

func (s *mockStore) GetLatestAnalysisResult(_ context.Context, uploadID uuid.UUID) (*models.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].UploadID == uploadID {
			return s.results[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) ListTrendsBetween(_ context.Context, from, to time.Time) ([]models.ExternalTrend, error) {
	if s.trendsErr != nil {
		return nil, s.trendsErr
	}
	var out []models.ExternalTrend
	for _, tr := range s.trends {
		if !tr.CollectedAt.Before(from) && !tr.CollectedAt.After(to) {
			out = append(out, tr)
		}
	}
	return out, nil
}

type mockCache struct {
	mu       sync.Mutex
	statuses map[string][]string
	results  map[uuid.UUID][]byte
	deleted  []string

	// failStatus makes SetJobStatus fail for the listed statuses.
	failStatus map[string]bool
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[string][]string), results: make(map[uuid.UUID][]byte)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *mockCache) Ping(_ context.Context) error { return nil }

func (c *mockCache) SetJobStatus(_ context.Context, jobID string, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failStatus[status] {
		return errors.New("redis: connection refused")
	}
	c.statuses[jobID] = append(c.statuses[jobID], status)
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.statuses[jobID]
	if len(s) == 0 {
		return "", false, nil
	}
	return s[len(s)-1], true, nil
}

func (c *mockCache) SetResult(_ context.Context, uploadID uuid.UUID, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[uploadID] = payload
	return nil
}

func (c *mockCache) GetResult(_ context.Context, uploadID uuid.UUID) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.results[uploadID]
	return p, ok, nil
}
