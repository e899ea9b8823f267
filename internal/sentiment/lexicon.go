package sentiment

import (
	"context"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/marketpulse/pkg/models"
)

var positiveWords = wordSet(
	"good", "great", "excellent", "fantastic", "amazing", "awesome", "love", "loved", "loves",
	"like", "liked", "best", "better", "happy", "pleased", "satisfied", "wonderful", "perfect",
	"superb", "outstanding", "brilliant", "recommend", "recommended", "fast", "easy", "reliable",
	"impressive", "enjoy", "enjoyed", "nice", "positive", "helpful", "friendly", "quality",
	"affordable", "delight", "delighted", "beautiful", "smooth", "success", "successful", "win",
	"growth", "profit", "strong", "favorite", "incredible", "efficient", "valuable", "fun",
)

var negativeWords = wordSet(
	"bad", "poor", "terrible", "awful", "horrible", "worst", "worse", "hate", "hated", "hates",
	"dislike", "disappointed", "disappointing", "angry", "unhappy", "broken", "slow", "difficult",
	"expensive", "overpriced", "buggy", "bug", "bugs", "crash", "crashes", "fail", "failed",
	"failure", "useless", "refund", "complaint", "problem", "problems", "issue", "issues",
	"negative", "rude", "delay", "delayed", "late", "defective", "waste", "annoying", "frustrating",
	"loss", "weak", "decline", "cancel", "cancelled", "scam",
)

var negators = wordSet("not", "no", "never", "isn", "wasn", "don", "doesn", "didn", "cannot", "without")

var reWord = regexp.MustCompile(`[\p{L}\p{M}]+`)

// LexiconClassifier scores text by counting polarity words, flipping a word that directly
// follows a negator. It needs no network or model files.
type LexiconClassifier struct{}

func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{}
}

func (c *LexiconClassifier) Name() string { return "lexicon" }

func (c *LexiconClassifier) Classify(ctx context.Context, docs []string) ([]models.SentimentScore, error) {
	out := make([]models.SentimentScore, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, ErrInferenceTimeout
		}
		out[i] = scoreText(doc)
	}
	return out, nil
}

// scoreText turns polarity counts into a two-class probability with add-one smoothing,
// so text with no polarity words scores 0.5/0.5.
func scoreText(text string) models.SentimentScore {
	var pos, neg float64
	negate := false
	for _, w := range reWord.FindAllString(strings.ToLower(text), -1) {
		if _, ok := negators[w]; ok {
			negate = true
			continue
		}
		_, isPos := positiveWords[w]
		_, isNeg := negativeWords[w]
		if negate {
			isPos, isNeg = isNeg, isPos
			negate = false
		}
		if isPos {
			pos++
		}
		if isNeg {
			neg++
		}
	}
	p := (pos + 1) / (pos + neg + 2)
	return models.SentimentScore{Positive: p, Negative: 1 - p}
}

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var _ models.SentimentClassifier = (*LexiconClassifier)(nil)
