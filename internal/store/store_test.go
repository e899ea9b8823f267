package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/marketpulse/internal/store"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("marketpulse_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations(connStr, migrationsDir()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func createJob(t *testing.T, s store.Store, jobID string) *models.UploadJob {
	t.Helper()
	job := &models.UploadJob{
		JobID:    jobID,
		UserID:   "user-1",
		FileName: "sales.csv",
		FilePath: "/tmp/uploads/" + jobID,
	}
	require.NoError(t, s.CreateUploadJob(context.Background(), job))
	return job
}

// --- Upload Job Tests ---

func TestUploadJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	created := createJob(t, s, "job-1")
	assert.NotEqual(t, uuid.Nil, created.ID)

	got, err := s.GetUploadJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, models.UploadStatusQueued, got.Status)
	assert.Equal(t, "sales.csv", got.FileName)
	assert.Nil(t, got.ErrorReason)
	assert.Nil(t, got.RowCount)
}

func TestUploadJob_DuplicateJobID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	createJob(t, s, "job-dup")
	err := s.CreateUploadJob(context.Background(), &models.UploadJob{JobID: "job-dup", UserID: "u", FileName: "f.csv"})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestUploadJob_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.GetUploadJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUploadJob_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	createJob(t, s, "job-life")

	claimed, err := s.ClaimUploadJob(ctx, "job-life", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusProcessing, claimed.Status)

	require.NoError(t, s.TouchUploadJob(ctx, "job-life"))

	err = s.UpdateUploadJobStatus(ctx, "job-life", models.UploadStatusCompleted,
		store.WithShape(3, 2, []string{"date", "sales"}))
	require.NoError(t, err)

	got, err := s.GetUploadJob(ctx, "job-life")
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusCompleted, got.Status)
	require.NotNil(t, got.RowCount)
	assert.Equal(t, 3, *got.RowCount)
	assert.Equal(t, 2, *got.ColumnCount)
	assert.Equal(t, []string{"date", "sales"}, got.Headers)
	assert.Nil(t, got.ErrorReason)
}

func TestUploadJob_TerminalNeverRegresses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	createJob(t, s, "job-term")

	require.NoError(t, s.UpdateUploadJobStatus(ctx, "job-term", models.UploadStatusFailed,
		store.WithErrorReason("file not found: /tmp/x")))

	err := s.UpdateUploadJobStatus(ctx, "job-term", models.UploadStatusProcessing)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	err = s.UpdateUploadJobStatus(ctx, "job-term", models.UploadStatusCompleted)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	_, err = s.ClaimUploadJob(ctx, "job-term", time.Minute)
	assert.ErrorIs(t, err, store.ErrJobNotClaimable)

	got, err := s.GetUploadJob(ctx, "job-term")
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusFailed, got.Status)
	require.NotNil(t, got.ErrorReason)
	assert.Equal(t, "file not found: /tmp/x", *got.ErrorReason)
}

func TestUploadJob_ClaimRespectsLease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	createJob(t, s, "job-lease")

	_, err := s.ClaimUploadJob(ctx, "job-lease", time.Minute)
	require.NoError(t, err)

	// A live worker holds the lease.
	_, err = s.ClaimUploadJob(ctx, "job-lease", time.Minute)
	assert.ErrorIs(t, err, store.ErrJobNotClaimable)

	// Simulate a crashed worker whose heartbeat went stale.
	_, err = pool.Exec(ctx, `UPDATE upload_jobs SET updated_at = NOW() - INTERVAL '2 minutes' WHERE job_id = $1`, "job-lease")
	require.NoError(t, err)

	reclaimed, err := s.ClaimUploadJob(ctx, "job-lease", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusProcessing, reclaimed.Status)
}

func TestUploadJob_ClaimNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.ClaimUploadJob(context.Background(), "ghost", time.Minute)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUploadJob_TouchRequiresProcessing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	createJob(t, s, "job-touch")

	err := s.TouchUploadJob(context.Background(), "job-touch")
	assert.True(t, errors.Is(err, store.ErrJobNotClaimable))
}

// --- Analysis Result Tests ---

func TestAnalysisResult_CreateAndGetLatest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	job := createJob(t, s, "job-result")

	first := &models.AnalysisRecord{
		UploadID:          job.ID,
		UserID:            job.UserID,
		SummaryStatistics: map[string]any{"sales": map[string]any{"type": "numerical", "mean": 2.0}},
		ProcessingErrors:  []any{},
		ProcessedAt:       time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond),
	}
	require.NoError(t, s.CreateAnalysisResult(ctx, first))

	second := &models.AnalysisRecord{
		UploadID:            job.ID,
		UserID:              job.UserID,
		SummaryStatistics:   map[string]any{},
		ExtractedKeywords:   map[string]any{"overall_top_keywords": []any{"great"}},
		CorrelationAnalysis: map[string]any{"error": "trends unavailable"},
		ProcessingErrors:    []any{"correlation: trends unavailable"},
		ProcessedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, s.CreateAnalysisResult(ctx, second))

	got, err := s.GetLatestAnalysisResult(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, map[string]any{"error": "trends unavailable"}, got.CorrelationAnalysis)
	assert.Equal(t, []any{"correlation: trends unavailable"}, got.ProcessingErrors)
	assert.Nil(t, got.SentimentScores)
	assert.Nil(t, got.TimeSeriesAnalysis)
}

func TestAnalysisResult_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.GetLatestAnalysisResult(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- External Trend Tests ---

func TestTrends_ListBetween(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, s.InsertTrends(ctx, []models.ExternalTrend{
		{TrendName: "ai", Score: 10, CollectedAt: day(1)},
		{TrendName: "ai", Score: 20, CollectedAt: day(2)},
		{TrendName: "ai", Score: 30, CollectedAt: day(9)},
	}))

	trends, err := s.ListTrendsBetween(ctx, day(1), day(3))
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, "ai", trends[0].TrendName)
	assert.InDelta(t, 10.0, trends[0].Score, 1e-9)
	assert.True(t, trends[1].CollectedAt.Equal(day(2)))
}

func TestApplyJobUpdateOptions(t *testing.T) {
	reason, rows, cols, headers := store.ApplyJobUpdateOptions(
		store.WithErrorReason("boom"), store.WithShape(4, 2, []string{"a", "b"}))
	require.NotNil(t, reason)
	assert.Equal(t, "boom", *reason)
	assert.Equal(t, 4, *rows)
	assert.Equal(t, 2, *cols)
	assert.Equal(t, []string{"a", "b"}, headers)
}
