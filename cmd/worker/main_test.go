package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/marketpulse/internal/config"
	"github.com/kiranshivaraju/marketpulse/internal/sentiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPinger struct {
	err error
}

func (p *testPinger) Ping(_ context.Context) error { return p.err }

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testPinger{}, &testPinger{})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	tests := []struct {
		name     string
		db       error
		cache    error
		database string
		cacheSvc string
	}{
		{"database", errors.New("connection refused"), nil, "degraded", "ok"},
		{"cache", nil, errors.New("redis down"), "ok", "degraded"},
		{"both", errors.New("db down"), errors.New("redis down"), "degraded", "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := healthHandler(&testPinger{err: tt.db}, &testPinger{err: tt.cache})

			w := httptest.NewRecorder()
			h(w, httptest.NewRequest("GET", "/api/v1/health", nil))

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "DEGRADED", errObj["code"])
			details := errObj["details"].(map[string]any)
			assert.Equal(t, tt.database, details["database"])
			assert.Equal(t, tt.cacheSvc, details["cache"])
		})
	}
}

// ─── sentiment setup tests ──────────────────────────────────────────────────

func offlineTruncator(int) (*sentiment.Truncator, error) {
	return nil, errors.New("encoding download blocked")
}

func TestNewSentimentAnalyzer_FallsBackToWordTruncation(t *testing.T) {
	a, err := newSentimentAnalyzer(config.SentimentConfig{
		Provider:  "lexicon",
		MaxTokens: 512,
		BatchSize: 16,
		Timeout:   time.Second,
	}, offlineTruncator)
	require.NoError(t, err)

	scores, err := a.Analyze(context.Background(), []string{"great fantastic excellent"})
	require.NoError(t, err)
	assert.Equal(t, "POSITIVE", scores.OverallLabel)
}

func TestNewSentimentAnalyzer_UnknownProvider(t *testing.T) {
	_, err := newSentimentAnalyzer(config.SentimentConfig{Provider: "bert", MaxTokens: 512, BatchSize: 16}, offlineTruncator)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create sentiment classifier")
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL"} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SENTIMENT_PROVIDER", "lexicon")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
