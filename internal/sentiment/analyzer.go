package sentiment

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// Analyzer truncates documents, classifies them in fixed-size batches and averages the scores.
type Analyzer struct {
	classifier models.SentimentClassifier
	truncator  *Truncator
	batchSize  int
	timeout    time.Duration
}

func NewAnalyzer(classifier models.SentimentClassifier, truncator *Truncator, batchSize int, timeout time.Duration) *Analyzer {
	if batchSize < 1 {
		batchSize = 16
	}
	return &Analyzer{classifier: classifier, truncator: truncator, batchSize: batchSize, timeout: timeout}
}

// Analyze scores every document. Zero documents yield the neutral result without calling
// the classifier.
func (a *Analyzer) Analyze(ctx context.Context, docs []string) (*models.SentimentScores, error) {
	if len(docs) == 0 {
		return Aggregate(nil), nil
	}

	scores := make([]models.SentimentScore, 0, len(docs))
	for start := 0; start < len(docs); start += a.batchSize {
		end := min(start+a.batchSize, len(docs))

		batch := make([]string, end-start)
		for i, doc := range docs[start:end] {
			if a.truncator != nil {
				doc = a.truncator.Truncate(doc)
			}
			batch[i] = doc
		}

		got, err := a.classifyBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%s batch %d-%d: %w", a.classifier.Name(), start, end, err)
		}
		scores = append(scores, got...)
	}
	return Aggregate(scores), nil
}

func (a *Analyzer) classifyBatch(ctx context.Context, batch []string) ([]models.SentimentScore, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	got, err := a.classifier.Classify(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(got) != len(batch) {
		return nil, fmt.Errorf("%w: %d scores for %d documents", ErrInvalidResponse, len(got), len(batch))
	}
	return got, nil
}

// Aggregate averages positive and negative scores separately. The label is whichever
// average is larger; equal averages, including the empty case, are NEUTRAL.
func Aggregate(scores []models.SentimentScore) *models.SentimentScores {
	out := &models.SentimentScores{OverallLabel: models.SentimentNeutral}
	if len(scores) == 0 {
		return out
	}

	var pos, neg float64
	for _, s := range scores {
		pos += s.Positive
		neg += s.Negative
	}
	n := float64(len(scores))
	out.Average = models.SentimentScore{Positive: pos / n, Negative: neg / n}

	switch {
	case out.Average.Positive > out.Average.Negative:
		out.OverallLabel = models.SentimentPositive
	case out.Average.Negative > out.Average.Positive:
		out.OverallLabel = models.SentimentNegative
	}
	return out
}
