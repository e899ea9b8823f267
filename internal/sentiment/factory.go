// Package sentiment scores documents with a binary positive/negative classifier and
// aggregates the scores over a dataset.
package sentiment

import (
	"fmt"

	"github.com/kiranshivaraju/marketpulse/internal/config"
	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// NewClassifier constructs the configured backend. Called once at worker startup.
func NewClassifier(cfg config.SentimentConfig) (models.SentimentClassifier, error) {
	switch cfg.Provider {
	case "lexicon":
		return NewLexiconClassifier(), nil
	case "huggingface":
		return NewHuggingFaceClassifier(cfg.HuggingFace.URL, cfg.HuggingFace.Token, cfg.Timeout), nil
	case "openai":
		return NewOpenAIClassifier(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	default:
		return nil, fmt.Errorf("unknown sentiment provider %q: must be one of lexicon, huggingface, openai", cfg.Provider)
	}
}
