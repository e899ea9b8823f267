// Package worker runs the upload analysis pipeline for queued jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/marketpulse/internal/cache"
	"github.com/kiranshivaraju/marketpulse/internal/config"
	"github.com/kiranshivaraju/marketpulse/internal/correlation"
	"github.com/kiranshivaraju/marketpulse/internal/dataset"
	"github.com/kiranshivaraju/marketpulse/internal/ingest"
	"github.com/kiranshivaraju/marketpulse/internal/profile"
	"github.com/kiranshivaraju/marketpulse/internal/result"
	"github.com/kiranshivaraju/marketpulse/internal/sentiment"
	"github.com/kiranshivaraju/marketpulse/internal/store"
	"github.com/kiranshivaraju/marketpulse/internal/textanalysis"
	"github.com/kiranshivaraju/marketpulse/internal/timeseries"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// Fatal error categories. Their messages prefix the error_reason stored on a failed job.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrStoringResult    = errors.New("storing result")
	ErrUnexpected       = errors.New("unexpected error")
)

// Settings holds the per-job tunables.
type Settings struct {
	LeaseTimeout      time.Duration
	HeartbeatInterval time.Duration
	StatusCacheTTL    time.Duration
	TopKeywords       int
	RollingWindow     int
	Profile           profile.Options
	Correlation       correlation.Options
}

// SettingsFromConfig maps the process configuration onto job settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	a := cfg.Analysis
	return Settings{
		LeaseTimeout:      cfg.Worker.LeaseTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		StatusCacheTTL:    cfg.Worker.StatusCacheTTL,
		TopKeywords:       a.TopKeywords,
		RollingWindow:     a.RollingWindow,
		Profile: profile.Options{
			CategoricalUniqueRatio: a.CategoricalUniqueRatio,
			CategoricalMaxUnique:   a.CategoricalMaxUnique,
			TopCategories:          a.TopCategories,
		},
		Correlation: correlation.Options{
			Threshold:  a.CorrelationThreshold,
			MinOverlap: a.MinOverlapPoints,
		},
	}
}

// Worker is the long-lived context shared by every job a process runs. It holds no per-job state.
type Worker struct {
	store     store.Store
	cache     cache.Cache
	sentiment *sentiment.Analyzer
	trends    correlation.TrendSource
	settings  Settings
	logger    *slog.Logger
}

// New creates a Worker. The store doubles as the trend source when trends is nil.
func New(st store.Store, ca cache.Cache, analyzer *sentiment.Analyzer, trends correlation.TrendSource, settings Settings, logger *slog.Logger) *Worker {
	if trends == nil {
		trends = st
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:     st,
		cache:     ca,
		sentiment: analyzer,
		trends:    trends,
		settings:  settings,
		logger:    logger,
	}
}

// job carries the state of one pipeline run.
type job struct {
	task    models.UploadTask
	log     *slog.Logger
	result  *models.AnalysisResult
	cleaned *dataset.Dataset
	stored  bool
}

func (j *job) addError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	j.result.ProcessingErrors = append(j.result.ProcessingErrors, msg)
	j.log.Warn("stage error", "error", msg)
}

// Process runs the full pipeline for one task. A job that is already finished or owned by a
// live worker is skipped and nil is returned. Otherwise the job ends completed or failed, the
// uploaded file is removed, and the returned error is the fatal cause, if any.
func (w *Worker) Process(ctx context.Context, task models.UploadTask) error {
	log := w.logger.With(
		"job_id", task.JobID,
		"upload_id", task.UploadID,
		"user_id", task.UserID,
		"filename", task.OriginalFilename,
	)
	// A claimed job runs to completion even if the caller is cancelled.
	ctx = context.WithoutCancel(ctx)

	claimed, err := w.store.ClaimUploadJob(ctx, task.JobID, w.settings.LeaseTimeout)
	switch {
	case errors.Is(err, store.ErrJobNotClaimable):
		log.Info("job already finished or in progress elsewhere, skipping")
		return nil
	case errors.Is(err, store.ErrNotFound):
		log.Error("no upload job record for task")
		w.removeFile(log, task.FilePath)
		return fmt.Errorf("claim job %s: %w", task.JobID, err)
	case err != nil:
		log.Error("failed to claim job", "error", err)
		w.removeFile(log, task.FilePath)
		_ = w.store.UpdateUploadJobStatus(ctx, task.JobID, models.UploadStatusFailed,
			store.WithErrorReason(fmt.Sprintf("%v: %v", ErrStoreUnavailable, err)))
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer w.removeFile(log, task.FilePath)

	if task.UploadID == uuid.Nil {
		task.UploadID = claimed.ID
	}
	j := &job{
		task: task,
		log:  log,
		result: &models.AnalysisResult{
			ID:       uuid.New(),
			UploadID: task.UploadID,
			UserID:   task.UserID,
		},
	}

	w.mirrorStatus(ctx, task.JobID, models.UploadStatusProcessing)
	log.Info("job claimed, processing")

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go w.heartbeat(hbCtx, j)
	err = w.run(ctx, j)
	stopHeartbeat()

	if err != nil {
		w.fail(ctx, j, err)
		return err
	}
	log.Info("job completed",
		"rows", j.cleaned.Rows(),
		"columns", len(j.cleaned.Columns),
		"processing_errors", len(j.result.ProcessingErrors))
	return nil
}

// run executes the stages in order. Panics become ErrUnexpected.
func (w *Worker) run(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			j.log.Error("panic in job", "error", r)
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
	}()

	start := time.Now()
	raw, ft, err := ingest.Load(j.task.FilePath, j.task.OriginalFilename)
	if err != nil {
		return err
	}
	j.log.Info("file ingested", "type", ft, "rows", raw.Rows(), "columns", len(raw.Columns))

	j.cleaned = dataset.Clean(raw)
	j.log.Info("dataset cleaned", "rows", j.cleaned.Rows(), "duplicates_removed", raw.Rows()-j.cleaned.Rows())

	profiles := w.profileStage(j)
	w.textStage(ctx, j, profiles)
	w.timeSeriesStage(j, profiles)
	w.correlationStage(ctx, j, profiles)

	j.result.ProcessedAt = time.Now().UTC()
	if err := w.store.CreateAnalysisResult(ctx, result.Encode(j.result)); err != nil {
		return fmt.Errorf("%w: %w", ErrStoringResult, err)
	}
	j.stored = true

	if err := w.store.UpdateUploadJobStatus(ctx, j.task.JobID, models.UploadStatusCompleted,
		store.WithShape(j.cleaned.Rows(), len(j.cleaned.Columns), j.cleaned.Headers())); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	w.mirrorStatus(ctx, j.task.JobID, models.UploadStatusCompleted)
	w.cacheResult(ctx, j)

	j.log.Info("analysis stored", "duration", time.Since(start))
	return nil
}

func (w *Worker) profileStage(j *job) map[string]models.ColumnProfile {
	profiles := profile.Profile(j.cleaned, w.settings.Profile)
	j.result.SummaryStatistics = profiles
	for _, name := range j.cleaned.Headers() {
		if p := profiles[name]; p.Type == models.ColumnError {
			j.addError("column %q: %s", name, p.Error)
		}
	}
	return profiles
}

func (w *Worker) textStage(ctx context.Context, j *job, profiles map[string]models.ColumnProfile) {
	j.result.ExtractedKeywords = &models.ExtractedKeywords{
		OverallTopKeywords: []string{},
		KeywordFrequency:   map[string]int{},
	}
	j.result.SentimentScores = sentiment.Aggregate(nil)

	textCols := profile.ColumnsOfType(j.cleaned, profiles, models.ColumnText)
	if len(textCols) == 0 {
		return
	}
	columns := make([][]string, 0, len(textCols))
	for _, name := range textCols {
		col := j.cleaned.Column(name)
		values := make([]string, col.Len())
		for i := range values {
			values[i] = col.Value(i)
		}
		columns = append(columns, values)
	}
	docs := textanalysis.Documents(columns, j.cleaned.Rows())

	keywords, err := textanalysis.ExtractKeywords(docs, w.settings.TopKeywords)
	if err != nil {
		j.addError("keyword extraction: %v", err)
	} else {
		j.result.ExtractedKeywords = keywords
	}

	if w.sentiment == nil {
		j.addError("sentiment analysis: no classifier configured")
		return
	}
	scores, err := w.sentiment.Analyze(ctx, docs)
	if err != nil {
		j.addError("sentiment analysis: %v", err)
		return
	}
	j.result.SentimentScores = scores
}

func (w *Worker) timeSeriesStage(j *job, profiles map[string]models.ColumnProfile) {
	j.result.TimeSeriesAnalysis = map[string]map[string]float64{}

	dateCols := profile.ColumnsOfType(j.cleaned, profiles, models.ColumnDatetime)
	numCols := profile.ColumnsOfType(j.cleaned, profiles, models.ColumnNumerical)
	if len(dateCols) == 0 || len(numCols) == 0 {
		return
	}

	series, errs := timeseries.RollingMeans(j.cleaned, dateCols[0], numCols, w.settings.RollingWindow)
	for _, err := range errs {
		j.addError("%v", err)
	}
	j.result.TimeSeriesAnalysis = series
}

func (w *Worker) correlationStage(ctx context.Context, j *job, profiles map[string]models.ColumnProfile) {
	j.result.CorrelationAnalysis = map[string]any{}

	dateCols := profile.ColumnsOfType(j.cleaned, profiles, models.ColumnDatetime)
	numCols := profile.ColumnsOfType(j.cleaned, profiles, models.ColumnNumerical)
	if len(dateCols) == 0 || len(numCols) == 0 {
		return
	}

	pairs, err := correlation.Analyze(ctx, w.trends, j.cleaned, dateCols[0], numCols, w.settings.Correlation)
	if err != nil {
		j.addError("correlation analysis: %v", err)
		j.result.CorrelationAnalysis = map[string]any{"error": err.Error()}
		return
	}
	for key, pair := range pairs {
		j.result.CorrelationAnalysis[key] = pair
	}
}

// fail records a fatal error: partial results first, when any stage produced output, then
// the failed status. Neither write failing changes the outcome.
func (w *Worker) fail(ctx context.Context, j *job, cause error) {
	reason := FailureReason(cause)
	j.log.Error("job failed", "error", reason)

	if !j.stored && j.result.SummaryStatistics != nil {
		j.result.ProcessedAt = time.Now().UTC()
		if err := w.store.CreateAnalysisResult(ctx, result.Encode(j.result)); err != nil {
			j.log.Error("failed to store partial result", "error", err)
		} else {
			j.log.Info("partial result stored")
		}
	}

	if err := w.store.UpdateUploadJobStatus(ctx, j.task.JobID, models.UploadStatusFailed,
		store.WithErrorReason(reason)); err != nil {
		j.log.Error("failed to mark job failed", "error", err)
	}
	w.mirrorStatus(ctx, j.task.JobID, models.UploadStatusFailed)
}

// FailureReason renders a fatal error as the human-readable error_reason. The prefix names
// the category.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ingest.ErrFileNotFound),
		errors.Is(err, ingest.ErrUnsupportedFileType),
		errors.Is(err, ingest.ErrEmptyDataset),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrStoringResult),
		errors.Is(err, ErrUnexpected):
		return err.Error()
	default:
		return fmt.Sprintf("%v: %v", ErrUnexpected, err)
	}
}

func (w *Worker) heartbeat(ctx context.Context, j *job) {
	if w.settings.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(w.settings.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.TouchUploadJob(ctx, j.task.JobID); err != nil && ctx.Err() == nil {
				j.log.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

func (w *Worker) mirrorStatus(ctx context.Context, jobID, status string) {
	if w.cache == nil {
		return
	}
	if err := w.cache.SetJobStatus(ctx, jobID, status, w.settings.StatusCacheTTL); err != nil {
		// A stale mirror would outrank the store for status reads until it expires.
		log := w.logger.With("job_id", jobID, "status", status)
		log.Warn("failed to mirror job status", "error", err)
		if err := w.cache.Delete(ctx, cache.JobStatusKey(jobID)); err != nil {
			log.Warn("failed to drop stale job status", "error", err)
		}
	}
}

func (w *Worker) cacheResult(ctx context.Context, j *job) {
	if w.cache == nil {
		return
	}
	payload, err := json.Marshal(result.Encode(j.result))
	if err != nil {
		j.log.Warn("failed to encode result for cache", "error", err)
		return
	}
	_ = w.cache.SetResult(ctx, j.task.UploadID, payload, w.settings.StatusCacheTTL)
}

// removeFile deletes the uploaded file. Failures are logged only.
func (w *Worker) removeFile(log *slog.Logger, path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info("temporary file already removed", "path", path)
		return
	}
	if err := os.Remove(path); err != nil {
		log.Error("failed to remove temporary file", "path", path, "error", err)
		return
	}
	log.Info("temporary file removed", "path", path)
}
