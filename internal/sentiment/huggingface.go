package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

// HuggingFaceClassifier calls a text-classification inference endpoint serving a binary
// SST-2 style model that labels text POSITIVE or NEGATIVE.
type HuggingFaceClassifier struct {
	url    string
	token  string
	client *http.Client
}

func NewHuggingFaceClassifier(url, token string, timeout time.Duration) *HuggingFaceClassifier {
	return &HuggingFaceClassifier{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HuggingFaceClassifier) Name() string { return "huggingface" }

type hfRequest struct {
	Inputs  []string  `json:"inputs"`
	Options hfOptions `json:"options"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfLabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *HuggingFaceClassifier) Classify(ctx context.Context, docs []string) ([]models.SentimentScore, error) {
	body, err := json.Marshal(hfRequest{Inputs: docs, Options: hfOptions{WaitForModel: true}})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	var raw [][]hfLabelScore
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrInvalidResponse, err)
	}
	if len(raw) != len(docs) {
		return nil, fmt.Errorf("%w: %d results for %d inputs", ErrInvalidResponse, len(raw), len(docs))
	}

	out := make([]models.SentimentScore, len(raw))
	for i, labels := range raw {
		for _, ls := range labels {
			switch strings.ToUpper(ls.Label) {
			case models.SentimentPositive, "LABEL_1":
				out[i].Positive = ls.Score
			case models.SentimentNegative, "LABEL_0":
				out[i].Negative = ls.Score
			}
		}
	}
	return out, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

var _ models.SentimentClassifier = (*HuggingFaceClassifier)(nil)
