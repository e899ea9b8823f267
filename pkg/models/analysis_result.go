package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisResult is the aggregated, insert-only output of one upload job.
// A nil section means the stage was never attempted; consumers pick the most recent
// row per upload by ProcessedAt.
type AnalysisResult struct {
	ID                  uuid.UUID                     `db:"id"                   json:"id"`
	UploadID            uuid.UUID                     `db:"upload_id"            json:"upload_id"`
	UserID              string                        `db:"user_id"              json:"user_id"`
	SummaryStatistics   map[string]ColumnProfile      `db:"summary_statistics"   json:"summary_statistics"`
	ExtractedKeywords   *ExtractedKeywords            `db:"extracted_keywords"   json:"extracted_keywords"`
	SentimentScores     *SentimentScores              `db:"sentiment_scores"     json:"sentiment_scores"`
	TimeSeriesAnalysis  map[string]map[string]float64 `db:"time_series_analysis" json:"time_series_analysis"`
	CorrelationAnalysis map[string]any                `db:"correlation_analysis" json:"correlation_analysis"`
	ProcessingErrors    []string                      `db:"processing_errors"    json:"processing_errors"`
	ProcessedAt         time.Time                     `db:"processed_at"         json:"processed_at"`
}

// ExtractedKeywords holds the TF-IDF ranking and raw counts for the same terms.
type ExtractedKeywords struct {
	OverallTopKeywords []string       `json:"overall_top_keywords"`
	KeywordFrequency   map[string]int `json:"keyword_frequency"`
}

// CorrelationPair is one retained metric/trend coefficient.
type CorrelationPair struct {
	Correlation float64 `json:"correlation"`
}

// AnalysisRecord is the storage form of an AnalysisResult. Every section holds only portable
// values (string, int64, float64, bool, nil, map[string]any, []any) so it can be written as JSON
// without loss. A nil section is stored as SQL NULL.
type AnalysisRecord struct {
	ID                  uuid.UUID `json:"id"`
	UploadID            uuid.UUID `json:"upload_id"`
	UserID              string    `json:"user_id"`
	SummaryStatistics   any       `json:"summary_statistics"`
	ExtractedKeywords   any       `json:"extracted_keywords"`
	SentimentScores     any       `json:"sentiment_scores"`
	TimeSeriesAnalysis  any       `json:"time_series_analysis"`
	CorrelationAnalysis any       `json:"correlation_analysis"`
	ProcessingErrors    any       `json:"processing_errors"`
	ProcessedAt         time.Time `json:"processed_at"`
}
