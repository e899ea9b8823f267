package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Upload Jobs ---

const uploadJobColumns = `id, job_id, user_id, file_name, file_path, status, error_reason,
	row_count, column_count, headers, created_at, updated_at`

func scanUploadJob(row pgx.Row) (*models.UploadJob, error) {
	var j models.UploadJob
	var headers []byte
	if err := row.Scan(&j.ID, &j.JobID, &j.UserID, &j.FileName, &j.FilePath, &j.Status, &j.ErrorReason,
		&j.RowCount, &j.ColumnCount, &headers, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &j.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}
	return &j, nil
}

func (s *PostgresStore) CreateUploadJob(ctx context.Context, job *models.UploadJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = models.UploadStatusQueued
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO upload_jobs (id, job_id, user_id, file_name, file_path, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.JobID, job.UserID, job.FileName, job.FilePath, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create upload job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUploadJob(ctx context.Context, jobID string) (*models.UploadJob, error) {
	j, err := scanUploadJob(s.pool.QueryRow(ctx,
		`SELECT `+uploadJobColumns+` FROM upload_jobs WHERE job_id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload job: %w", err)
	}
	return j, nil
}

// ClaimUploadJob moves a job into processing. A job already in processing can be taken over
// only once its last heartbeat is older than lease.
func (s *PostgresStore) ClaimUploadJob(ctx context.Context, jobID string, lease time.Duration) (*models.UploadJob, error) {
	j, err := scanUploadJob(s.pool.QueryRow(ctx,
		`UPDATE upload_jobs SET status = 'processing', updated_at = NOW()
		 WHERE job_id = $1
		   AND (status = 'queued' OR (status = 'processing' AND updated_at < NOW() - make_interval(secs => $2)))
		 RETURNING `+uploadJobColumns, jobID, lease.Seconds()))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetUploadJob(ctx, jobID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrJobNotClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("claim upload job: %w", err)
	}
	return j, nil
}

// TouchUploadJob refreshes the heartbeat of a job in processing.
func (s *PostgresStore) TouchUploadJob(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE upload_jobs SET updated_at = NOW() WHERE job_id = $1 AND status = 'processing'`, jobID)
	if err != nil {
		return fmt.Errorf("touch upload job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotClaimable
	}
	return nil
}

// allowedFrom maps a target status to the statuses it may be entered from.
var allowedFrom = map[string][]string{
	models.UploadStatusProcessing: {models.UploadStatusQueued},
	models.UploadStatusCompleted:  {models.UploadStatusProcessing},
	models.UploadStatusFailed:     {models.UploadStatusQueued, models.UploadStatusProcessing},
}

func (s *PostgresStore) UpdateUploadJobStatus(ctx context.Context, jobID string, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	from, ok := allowedFrom[status]
	if !ok {
		return fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, status)
	}

	query := `UPDATE upload_jobs SET status = $3, updated_at = NOW()`
	args := []any{jobID, from, status}
	argIdx := 4

	switch {
	case params.ErrorReason != nil:
		query += fmt.Sprintf(", error_reason = $%d", argIdx)
		args = append(args, *params.ErrorReason)
		argIdx++
	case status == models.UploadStatusCompleted:
		query += ", error_reason = NULL"
	}
	if params.RowCount != nil {
		query += fmt.Sprintf(", row_count = $%d, column_count = $%d", argIdx, argIdx+1)
		args = append(args, *params.RowCount, *params.ColumnCount)
		argIdx += 2
	}
	if params.Headers != nil {
		headers, err := json.Marshal(params.Headers)
		if err != nil {
			return fmt.Errorf("encode headers: %w", err)
		}
		query += fmt.Sprintf(", headers = $%d", argIdx)
		args = append(args, headers)
	}

	query += " WHERE job_id = $1 AND status = ANY($2)"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update upload job status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := s.GetUploadJob(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
}

// --- Analysis Results ---

func (s *PostgresStore) CreateAnalysisResult(ctx context.Context, rec *models.AnalysisRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	sections := []any{rec.SummaryStatistics, rec.ExtractedKeywords, rec.SentimentScores,
		rec.TimeSeriesAnalysis, rec.CorrelationAnalysis, rec.ProcessingErrors}
	args := []any{rec.ID, rec.UploadID, rec.UserID}
	for _, section := range sections {
		raw, err := jsonbArg(section)
		if err != nil {
			return fmt.Errorf("encode analysis section: %w", err)
		}
		args = append(args, raw)
	}
	args = append(args, rec.ProcessedAt)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_results (id, upload_id, user_id, summary_statistics, extracted_keywords,
		   sentiment_scores, time_series_analysis, correlation_analysis, processing_errors, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, args...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create analysis result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLatestAnalysisResult(ctx context.Context, uploadID uuid.UUID) (*models.AnalysisRecord, error) {
	var r models.AnalysisRecord
	raw := make([][]byte, 6)
	err := s.pool.QueryRow(ctx,
		`SELECT id, upload_id, user_id, summary_statistics, extracted_keywords, sentiment_scores,
		   time_series_analysis, correlation_analysis, processing_errors, processed_at
		 FROM analysis_results WHERE upload_id = $1 ORDER BY processed_at DESC LIMIT 1`, uploadID,
	).Scan(&r.ID, &r.UploadID, &r.UserID, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &r.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest analysis result: %w", err)
	}

	targets := []*any{&r.SummaryStatistics, &r.ExtractedKeywords, &r.SentimentScores,
		&r.TimeSeriesAnalysis, &r.CorrelationAnalysis, &r.ProcessingErrors}
	for i, target := range targets {
		if len(raw[i]) == 0 {
			continue
		}
		if err := json.Unmarshal(raw[i], target); err != nil {
			return nil, fmt.Errorf("decode analysis section: %w", err)
		}
	}
	return &r, nil
}

// --- External Trends ---

func (s *PostgresStore) ListTrendsBetween(ctx context.Context, from, to time.Time) ([]models.ExternalTrend, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT trend_name, score, collected_at FROM external_trends
		 WHERE collected_at >= $1 AND collected_at <= $2 ORDER BY collected_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list trends: %w", err)
	}
	defer rows.Close()

	var trends []models.ExternalTrend
	for rows.Next() {
		var tr models.ExternalTrend
		if err := rows.Scan(&tr.TrendName, &tr.Score, &tr.CollectedAt); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		trends = append(trends, tr)
	}
	return trends, rows.Err()
}

// InsertTrends bulk-loads trend observations. The trend collector owns this table; the
// worker only reads it, so this lives outside the Store interface.
func (s *PostgresStore) InsertTrends(ctx context.Context, trends []models.ExternalTrend) error {
	rows := make([][]any, len(trends))
	for i, tr := range trends {
		rows[i] = []any{tr.TrendName, tr.Score, tr.CollectedAt}
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"external_trends"},
		[]string{"trend_name", "score", "collected_at"}, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("insert trends: %w", err)
	}
	return nil
}

// jsonbArg encodes a section for a JSONB column. nil becomes SQL NULL.
func jsonbArg(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
