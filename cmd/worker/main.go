// Package main is the entrypoint for the MarketPulse upload analysis worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/marketpulse/internal/api"
	"github.com/kiranshivaraju/marketpulse/internal/api/handler"
	"github.com/kiranshivaraju/marketpulse/internal/api/response"
	"github.com/kiranshivaraju/marketpulse/internal/cache"
	"github.com/kiranshivaraju/marketpulse/internal/config"
	"github.com/kiranshivaraju/marketpulse/internal/queue"
	"github.com/kiranshivaraju/marketpulse/internal/sentiment"
	"github.com/kiranshivaraju/marketpulse/internal/store"
	"github.com/kiranshivaraju/marketpulse/internal/worker"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"sentiment_provider", cfg.Sentiment.Provider,
		"concurrency", cfg.Worker.Concurrency,
		"env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Connect to Redis; the status mirror and the task queue share one client
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	redisCache := cache.NewRedisCacheFromClient(redisClient)
	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Queue consumer
	streams := queue.NewStreamsClient(redisClient, cfg.Redis.StreamPrefix)
	consumer, err := queue.NewConsumer(streams, queue.ConsumerConfig{
		ConsumerGroup: cfg.Redis.ConsumerGroup,
		ConsumerID:    cfg.Redis.ConsumerID,
		BlockTimeout:  cfg.Redis.BlockTimeout,
		BatchSize:     int64(cfg.Worker.Concurrency),
		ClaimMinIdle:  cfg.Redis.ClaimMinIdle,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("create queue consumer: %w", err)
	}
	if err := consumer.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize queue consumer: %w", err)
	}
	slog.Info("queue consumer ready",
		"stream", streams.UploadStream(),
		"group", cfg.Redis.ConsumerGroup,
		"consumer", cfg.Redis.ConsumerID)

	// 6. Sentiment classifier, loaded once and shared by every job
	analyzer, err := newSentimentAnalyzer(cfg.Sentiment, sentiment.NewTokenTruncator)
	if err != nil {
		return err
	}

	// 7. Worker
	pgStore := store.NewPostgresStore(pool)
	w := worker.New(pgStore, redisCache, analyzer, pgStore, worker.SettingsFromConfig(cfg), slog.Default())
	runner := worker.NewRunner(consumer, w, cfg.Worker.Concurrency, slog.Default(),
		worker.WithKeepAlive(cfg.Worker.HeartbeatInterval))

	// 8. Ops HTTP server
	router := api.NewRouter(api.Dependencies{
		Logger:           slog.Default(),
		HealthHandler:    healthHandler(pgStore, redisCache),
		GetUploadHandler: handler.NewGetUploadHandler(pgStore),
		GetStatusHandler: handler.NewGetStatusHandler(pgStore, redisCache),
		GetResultHandler: handler.NewGetResultHandler(pgStore, redisCache),
	})
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("ops server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("worker started")
		return runner.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newSentimentAnalyzer builds the configured classifier and its truncator. Word counting
// replaces newTruncator when the token encoding cannot be loaded.
func newSentimentAnalyzer(cfg config.SentimentConfig, newTruncator func(int) (*sentiment.Truncator, error)) (*sentiment.Analyzer, error) {
	classifier, err := sentiment.NewClassifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("create sentiment classifier: %w", err)
	}

	truncator, err := newTruncator(cfg.MaxTokens)
	if err != nil {
		slog.Warn("token encoding unavailable, truncating by words", "error", err)
		truncator = sentiment.NewWordTruncator(cfg.MaxTokens)
	}

	slog.Info("sentiment classifier initialized", "provider", classifier.Name(), "max_tokens", cfg.MaxTokens)
	return sentiment.NewAnalyzer(classifier, truncator, cfg.BatchSize, cfg.Timeout), nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
