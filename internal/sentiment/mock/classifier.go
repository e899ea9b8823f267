package mock

import (
	"context"

	"github.com/kiranshivaraju/marketpulse/internal/sentiment"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// MockClassifier satisfies models.SentimentClassifier for testing.
type MockClassifier struct {
	Name_        string
	ClassifyFunc func(ctx context.Context, docs []string) ([]models.SentimentScore, error)
	Calls        [][]string
}

func (m *MockClassifier) Name() string { return m.Name_ }

func (m *MockClassifier) Classify(ctx context.Context, docs []string) ([]models.SentimentScore, error) {
	m.Calls = append(m.Calls, docs)
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, docs)
	}
	return make([]models.SentimentScore, len(docs)), nil
}

// NewFixedClassifier returns a classifier that scores every document the same.
func NewFixedClassifier(positive, negative float64) *MockClassifier {
	return &MockClassifier{
		Name_: "mock",
		ClassifyFunc: func(_ context.Context, docs []string) ([]models.SentimentScore, error) {
			out := make([]models.SentimentScore, len(docs))
			for i := range out {
				out[i] = models.SentimentScore{Positive: positive, Negative: negative}
			}
			return out, nil
		},
	}
}

// NewFailingClassifier returns a classifier that always returns the given error.
func NewFailingClassifier(err error) *MockClassifier {
	return &MockClassifier{
		Name_: "mock-failing",
		ClassifyFunc: func(_ context.Context, _ []string) ([]models.SentimentScore, error) {
			return nil, err
		},
	}
}

// NewTimeoutClassifier returns a classifier that blocks until the context is done.
func NewTimeoutClassifier() *MockClassifier {
	return &MockClassifier{
		Name_: "mock-timeout",
		ClassifyFunc: func(ctx context.Context, _ []string) ([]models.SentimentScore, error) {
			<-ctx.Done()
			return nil, sentiment.ErrInferenceTimeout
		},
	}
}

var _ models.SentimentClassifier = (*MockClassifier)(nil)
