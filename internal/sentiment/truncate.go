package sentiment

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Truncator cuts documents to a maximum token count. With no BPE encoding loaded it counts
// whitespace-separated words instead.
type Truncator struct {
	encoding  *tiktoken.Tiktoken
	maxTokens int
}

// NewTokenTruncator uses the cl100k_base encoding. Loading it may need network access the
// first time, so callers usually fall back to NewWordTruncator on error.
func NewTokenTruncator(maxTokens int) (*Truncator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding: %w", err)
	}
	return &Truncator{encoding: enc, maxTokens: maxTokens}, nil
}

func NewWordTruncator(maxTokens int) *Truncator {
	return &Truncator{maxTokens: maxTokens}
}

func (t *Truncator) Truncate(text string) string {
	if t.maxTokens <= 0 {
		return text
	}

	if t.encoding != nil {
		tokens := t.encoding.Encode(text, nil, nil)
		if len(tokens) <= t.maxTokens {
			return text
		}
		return t.encoding.Decode(tokens[:t.maxTokens])
	}

	words := strings.Fields(text)
	if len(words) <= t.maxTokens {
		return text
	}
	return strings.Join(words[:t.maxTokens], " ")
}
