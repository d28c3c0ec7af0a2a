// Package main runs the match worker: scheduled full recomputes plus queued brand and event jobs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plugcu/backend/config"
	"github.com/plugcu/backend/internal/brands"
	"github.com/plugcu/backend/internal/events"
	"github.com/plugcu/backend/internal/matching"
	"github.com/plugcu/backend/internal/worker"
	"github.com/plugcu/backend/pkg/database"
	"github.com/plugcu/backend/pkg/queue"
	"github.com/plugcu/backend/pkg/redis"
	"github.com/plugcu/backend/pkg/retry"
	"github.com/plugcu/backend/pkg/telemetry"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	scorer, err := matching.NewScorer(matching.ScorerConfigFrom(cfg.Matching))
	if err != nil {
		logger.Fatal("scorer config", zap.Error(err))
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, "plugcu-worker", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	policy := retry.Policy{Initial: cfg.Connect.RetryInitial, Max: cfg.Connect.RetryMax, MaxElapsed: cfg.Connect.RetryMaxElapsed}
	var pool *pgxpool.Pool
	if err := retry.Do(ctx, policy, "postgres", logger, func() (err error) {
		pool, err = database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
		return err
	}); err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var rdb *redis.Client
	if err := retry.Do(ctx, policy, "redis", logger, func() (err error) {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		return err
	}); err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	batch := matching.NewBatch(scorer,
		brands.NewRepository(pool),
		events.NewRepository(pool),
		matching.NewRepository(pool),
		matching.BatchConfig{MinScore: cfg.Matching.MinScore, Workers: cfg.Matching.Workers},
		logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewMatchProcessor(batch, jobQueue, cfg.Matching.ScheduleInterval, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("match worker started",
		zap.Duration("schedule_interval", cfg.Matching.ScheduleInterval),
		zap.Int("workers", cfg.Matching.Workers))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
