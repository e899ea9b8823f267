// Package textanalysis extracts ranked keywords from free-text columns with TF-IDF.
package textanalysis

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kiranshivaraju/marketpulse/pkg/models"
	"gonum.org/v1/gonum/floats"
)

// ErrEmptyVocabulary is returned when no document contains a usable term.
var ErrEmptyVocabulary = errors.New("empty vocabulary: documents contain only stop words")

// Tokens are runs of two or more Unicode letters, digits or underscores.
var reToken = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// Tokenize lowercases text, splits it into word tokens and drops stop words.
func Tokenize(text string) []string {
	raw := reToken.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if !IsStopWord(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Terms returns the unigrams of tokens followed by their adjacent bigrams.
func Terms(tokens []string) []string {
	terms := make([]string, 0, 2*len(tokens))
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// ExtractKeywords ranks unigram and bigram terms by their TF-IDF weight summed over all
// documents and returns the top n together with raw occurrence counts for those same terms.
// Weights use smoothed idf, ln((1+N)/(1+df))+1, and each document vector is L2-normalized.
func ExtractKeywords(docs []string, n int) (*models.ExtractedKeywords, error) {
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		c := make(map[string]int)
		for _, term := range Terms(Tokenize(doc)) {
			c[term]++
		}
		for term := range c {
			df[term]++
		}
		counts[i] = c
	}
	if len(df) == 0 {
		return nil, ErrEmptyVocabulary
	}

	nDocs := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, d := range df {
		idf[term] = math.Log((1+nDocs)/(1+float64(d))) + 1
	}

	total := make(map[string]float64, len(df))
	for _, c := range counts {
		if len(c) == 0 {
			continue
		}
		terms := make([]string, 0, len(c))
		for term := range c {
			terms = append(terms, term)
		}
		sort.Strings(terms)

		weights := make([]float64, len(terms))
		for j, term := range terms {
			weights[j] = float64(c[term]) * idf[term]
		}
		if norm := floats.Norm(weights, 2); norm > 0 {
			floats.Scale(1/norm, weights)
		}
		for j, term := range terms {
			total[term] += weights[j]
		}
	}

	ranked := make([]string, 0, len(total))
	for term := range total {
		ranked = append(ranked, term)
	}
	sort.Slice(ranked, func(i, j int) bool {
		wi, wj := total[ranked[i]], total[ranked[j]]
		if wi != wj {
			return wi > wj
		}
		return ranked[i] < ranked[j]
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	freq := make(map[string]int, len(ranked))
	for _, term := range ranked {
		for _, c := range counts {
			freq[term] += c[term]
		}
	}

	return &models.ExtractedKeywords{OverallTopKeywords: ranked, KeywordFrequency: freq}, nil
}

// Documents joins the given text columns row by row with a single space.
func Documents(columns [][]string, rows int) []string {
	docs := make([]string, rows)
	parts := make([]string, 0, len(columns))
	for i := 0; i < rows; i++ {
		parts = parts[:0]
		for _, col := range columns {
			if i < len(col) {
				parts = append(parts, col[i])
			}
		}
		docs[i] = strings.Join(parts, " ")
	}
	return docs
}
