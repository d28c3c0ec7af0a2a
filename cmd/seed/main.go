// Package main loads demo data into the database and schedules a full match recompute.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plugcu/backend/config"
	"github.com/plugcu/backend/internal/auth"
	"github.com/plugcu/backend/internal/brands"
	"github.com/plugcu/backend/internal/events"
	"github.com/plugcu/backend/internal/organizations"
	"github.com/plugcu/backend/internal/seed"
	"github.com/plugcu/backend/pkg/database"
	"github.com/plugcu/backend/pkg/queue"
	"github.com/plugcu/backend/pkg/redis"
	"github.com/plugcu/backend/pkg/retry"
)

func main() {
	file := flag.String("file", "", "YAML dataset to load (default: bundled demo data)")
	password := flag.String("password", envOr("SEED_PASSWORD", "plugcu-demo"), "login password for created users")
	recompute := flag.Bool("recompute", true, "enqueue a full match recompute after seeding")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	data := seed.Demo
	if *file != "" {
		b, err := os.ReadFile(*file)
		if err != nil {
			logger.Fatal("read dataset", zap.Error(err))
		}
		data = b
	}
	ds, err := seed.Parse(data)
	if err != nil {
		logger.Fatal("dataset", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
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

	seeder := seed.NewSeeder(seed.Stores{
		Users:  auth.NewRepository(pool),
		Orgs:   organizations.NewRepository(pool),
		Brands: brands.NewRepository(pool),
		Events: events.NewRepository(pool),
	}, *password, logger)
	sum, err := seeder.Apply(ctx, ds)
	if err != nil {
		logger.Fatal("seed", zap.Error(err))
	}
	logger.Info("seed complete",
		zap.Int("users_created", sum.UsersCreated),
		zap.Int("users_existing", sum.UsersExisting),
		zap.Int("events_created", sum.EventsCreated),
		zap.Int("events_existing", sum.EventsExisting))

	if !*recompute {
		return
	}
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("recompute not scheduled; the worker's next full run will pick the data up", zap.Error(err))
		return
	}
	defer rdb.Close()
	if err := queue.NewQueue(rdb.Client, logger).EnqueueRecomputeAll(ctx, "seed"); err != nil {
		logger.Warn("enqueue recompute failed", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
