package models

import "context"

const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

// SentimentClassifier is the interface all sentiment backends implement.
// Classify returns one score per input document, in order.
type SentimentClassifier interface {
	Classify(ctx context.Context, docs []string) ([]SentimentScore, error)
	// Name returns the provider identifier (e.g., "lexicon", "huggingface").
	Name() string
}

// SentimentScore is the binary classifier output for one document.
type SentimentScore struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
}

// SentimentScores is the aggregate persisted with an analysis result.
type SentimentScores struct {
	Average      SentimentScore `json:"average"`
	OverallLabel string         `json:"overall_label"`
}
