package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the MarketPulse worker.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Worker    WorkerConfig
	Sentiment SentimentConfig
	Analysis  AnalysisConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL           string
	StreamPrefix  string
	ConsumerGroup string
	ConsumerID    string
	BlockTimeout  time.Duration
	ClaimMinIdle  time.Duration
}

type WorkerConfig struct {
	Concurrency       int
	LeaseTimeout      time.Duration
	HeartbeatInterval time.Duration
	StatusCacheTTL    time.Duration
}

type SentimentConfig struct {
	Provider    string
	MaxTokens   int
	BatchSize   int
	Timeout     time.Duration
	HuggingFace HuggingFaceConfig
	OpenAI      OpenAIConfig
}

type HuggingFaceConfig struct {
	URL   string
	Token string
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

// AnalysisConfig holds the tunable thresholds of the analysis stages.
// The defaults are heuristics, not fixed law.
type AnalysisConfig struct {
	CategoricalUniqueRatio float64
	CategoricalMaxUnique   int
	TopCategories          int
	TopKeywords            int
	RollingWindow          int
	CorrelationThreshold   float64
	MinOverlapPoints       int
}

var validProviders = map[string]bool{
	"lexicon":     true,
	"huggingface": true,
	"openai":      true,
}

// DefaultAnalysis returns the stock analysis thresholds.
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		CategoricalUniqueRatio: 0.5,
		CategoricalMaxUnique:   1000,
		TopCategories:          20,
		TopKeywords:            20,
		RollingWindow:          7,
		CorrelationThreshold:   0.3,
		MinOverlapPoints:       2,
	}
}

// Load reads configuration from environment variables (after merging an optional .env file)
// and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	hostname, _ := os.Hostname()
	defaults := DefaultAnalysis()

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MARKETPULSE_PORT", 8081),
			Env:  envString("MARKETPULSE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL:           os.Getenv("REDIS_URL"),
			StreamPrefix:  envString("QUEUE_STREAM_PREFIX", "marketpulse"),
			ConsumerGroup: envString("QUEUE_CONSUMER_GROUP", "upload-workers"),
			ConsumerID:    envString("QUEUE_CONSUMER_ID", hostname),
			BlockTimeout:  envDuration("QUEUE_BLOCK_TIMEOUT", 5*time.Second),
			ClaimMinIdle:  envDuration("QUEUE_CLAIM_MIN_IDLE", 15*time.Minute),
		},
		Worker: WorkerConfig{
			Concurrency:       envInt("WORKER_CONCURRENCY", 4),
			LeaseTimeout:      envDuration("WORKER_LEASE_TIMEOUT", 10*time.Minute),
			HeartbeatInterval: envDuration("WORKER_HEARTBEAT_INTERVAL", 30*time.Second),
			StatusCacheTTL:    envDuration("WORKER_STATUS_CACHE_TTL", time.Hour),
		},
		Sentiment: SentimentConfig{
			Provider:  envString("SENTIMENT_PROVIDER", "lexicon"),
			MaxTokens: envInt("SENTIMENT_MAX_TOKENS", 512),
			BatchSize: envInt("SENTIMENT_BATCH_SIZE", 16),
			Timeout:   envDurationSecs("SENTIMENT_TIMEOUT_SECS", 60*time.Second),
			HuggingFace: HuggingFaceConfig{
				URL:   envString("HF_INFERENCE_URL", "https://api-inference.huggingface.co/models/distilbert-base-uncased-finetuned-sst-2-english"),
				Token: os.Getenv("HF_API_TOKEN"),
			},
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
		},
		Analysis: AnalysisConfig{
			CategoricalUniqueRatio: envFloat("ANALYSIS_CATEGORICAL_UNIQUE_RATIO", defaults.CategoricalUniqueRatio),
			CategoricalMaxUnique:   envInt("ANALYSIS_CATEGORICAL_MAX_UNIQUE", defaults.CategoricalMaxUnique),
			TopCategories:          envInt("ANALYSIS_TOP_CATEGORIES", defaults.TopCategories),
			TopKeywords:            envInt("ANALYSIS_TOP_KEYWORDS", defaults.TopKeywords),
			RollingWindow:          envInt("ANALYSIS_ROLLING_WINDOW", defaults.RollingWindow),
			CorrelationThreshold:   envFloat("ANALYSIS_CORRELATION_THRESHOLD", defaults.CorrelationThreshold),
			MinOverlapPoints:       envInt("ANALYSIS_MIN_OVERLAP_POINTS", defaults.MinOverlapPoints),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.Redis.ConsumerID == "" {
		return fmt.Errorf("QUEUE_CONSUMER_ID is required when the hostname is unavailable")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.HeartbeatInterval >= c.Worker.LeaseTimeout {
		return fmt.Errorf("WORKER_HEARTBEAT_INTERVAL (%s) must be shorter than WORKER_LEASE_TIMEOUT (%s)",
			c.Worker.HeartbeatInterval, c.Worker.LeaseTimeout)
	}

	if c.Worker.LeaseTimeout >= c.Redis.ClaimMinIdle {
		return fmt.Errorf("WORKER_LEASE_TIMEOUT (%s) must be shorter than QUEUE_CLAIM_MIN_IDLE (%s)",
			c.Worker.LeaseTimeout, c.Redis.ClaimMinIdle)
	}
	if c.Worker.HeartbeatInterval*2 > c.Redis.ClaimMinIdle {
		return fmt.Errorf("WORKER_HEARTBEAT_INTERVAL (%s) must be at most half of QUEUE_CLAIM_MIN_IDLE (%s)",
			c.Worker.HeartbeatInterval, c.Redis.ClaimMinIdle)
	}

	if !validProviders[c.Sentiment.Provider] {
		return fmt.Errorf("SENTIMENT_PROVIDER must be one of lexicon, huggingface, openai; got %q", c.Sentiment.Provider)
	}
	if c.Sentiment.Provider == "huggingface" &&
		!strings.HasPrefix(c.Sentiment.HuggingFace.URL, "http://") && !strings.HasPrefix(c.Sentiment.HuggingFace.URL, "https://") {
		return fmt.Errorf("HF_INFERENCE_URL must start with http:// or https://, got %q", c.Sentiment.HuggingFace.URL)
	}
	if c.Sentiment.Provider == "openai" && c.Sentiment.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when SENTIMENT_PROVIDER is openai")
	}
	if c.Sentiment.MaxTokens < 1 || c.Sentiment.BatchSize < 1 {
		return fmt.Errorf("SENTIMENT_MAX_TOKENS and SENTIMENT_BATCH_SIZE must be positive")
	}

	a := c.Analysis
	if a.CategoricalUniqueRatio <= 0 || a.CategoricalUniqueRatio > 1 {
		return fmt.Errorf("ANALYSIS_CATEGORICAL_UNIQUE_RATIO must be in (0, 1], got %v", a.CategoricalUniqueRatio)
	}
	if a.RollingWindow < 1 {
		return fmt.Errorf("ANALYSIS_ROLLING_WINDOW must be at least 1, got %d", a.RollingWindow)
	}
	if a.CorrelationThreshold < 0 || a.CorrelationThreshold >= 1 {
		return fmt.Errorf("ANALYSIS_CORRELATION_THRESHOLD must be in [0, 1), got %v", a.CorrelationThreshold)
	}
	if a.MinOverlapPoints < 2 {
		return fmt.Errorf("ANALYSIS_MIN_OVERLAP_POINTS must be at least 2, got %d", a.MinOverlapPoints)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
