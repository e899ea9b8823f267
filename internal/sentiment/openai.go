package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const openAIPrompt = `Classify the sentiment of each numbered text below as positive or negative.
Respond with a JSON object {"scores": [{"positive": p, "negative": n}, ...]} holding exactly one
entry per text, in order, where p and n are probabilities between 0 and 1 that sum to 1.

`

// OpenAIClassifier asks a chat model for per-document sentiment probabilities.
type OpenAIClassifier struct {
	client openai.Client
	model  string
}

func NewOpenAIClassifier(apiKey, model string, opts ...option.RequestOption) (*OpenAIClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not set", ErrProviderUnavailable)
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClassifier{client: openai.NewClient(opts...), model: model}, nil
}

func (c *OpenAIClassifier) Name() string { return "openai" }

type openAIScores struct {
	Scores []models.SentimentScore `json:"scores"`
}

func (c *OpenAIClassifier) Classify(ctx context.Context, docs []string) ([]models.SentimentScore, error) {
	var b strings.Builder
	b.WriteString(openAIPrompt)
	for i, doc := range docs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(doc, "\n", " "))
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(b.String()),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion choices returned", ErrInvalidResponse)
	}

	var parsed openAIScores
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding scores: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Scores) != len(docs) {
		return nil, fmt.Errorf("%w: %d scores for %d texts", ErrInvalidResponse, len(parsed.Scores), len(docs))
	}
	return parsed.Scores, nil
}

var _ models.SentimentClassifier = (*OpenAIClassifier)(nil)
