// Package main runs the PlugCU HTTP API with live thread updates and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plugcu/backend/config"
	"github.com/plugcu/backend/internal/admin"
	"github.com/plugcu/backend/internal/auth"
	"github.com/plugcu/backend/internal/brands"
	"github.com/plugcu/backend/internal/dashboard"
	"github.com/plugcu/backend/internal/events"
	"github.com/plugcu/backend/internal/matching"
	"github.com/plugcu/backend/internal/messaging"
	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/organizations"
	"github.com/plugcu/backend/internal/realtime"
	"github.com/plugcu/backend/pkg/database"
	"github.com/plugcu/backend/pkg/queue"
	"github.com/plugcu/backend/pkg/redis"
	"github.com/plugcu/backend/pkg/response"
	"github.com/plugcu/backend/pkg/retry"
	"github.com/plugcu/backend/pkg/storage"
	"github.com/plugcu/backend/pkg/telemetry"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, "plugcu-api", cfg.Telemetry.OTLPEndpoint)
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

	// Uploads are optional; profile endpoints answer 503 for upload URLs without S3.
	var assets *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.AssetsBucket != "" {
		assets, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			assets = nil
		}
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub, cfg.Server.AllowedOrigins())

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	sessions := auth.NewSessionService(jwtService, rdb.Client, logger)

	userRepo := auth.NewRepository(pool)
	orgRepo := organizations.NewRepository(pool)
	brandRepo := brands.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	matchRepo := matching.NewRepository(pool)
	threadRepo := messaging.NewRepository(pool)

	authHandler := auth.NewHandler(userRepo, sessions, cfg.Server, logger)
	orgHandler := organizations.NewHandler(orgRepo, assetSigner[organizations.AssetSigner](assets), logger)
	eventHandler := events.NewHandler(eventRepo, orgRepo, jobQueue, logger)
	brandHandler := brands.NewHandler(brandRepo, eventRepo, matchRepo, jobQueue, assetSigner[brands.AssetSigner](assets), logger)
	messageHandler := messaging.NewHandler(threadRepo, brandRepo, eventRepo, hub, logger)
	adminHandler := admin.NewHandler(userRepo, orgRepo, brandRepo, matchRepo, jobQueue, logger)
	dashboardHandler := dashboard.NewHandler(userRepo, orgRepo, brandRepo, eventRepo, matchRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Tracing())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Gate(sessions, cfg.Server.CookieName, logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Identity provider
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/callback", authHandler.Callback)
	}
	router.POST("/logout", authHandler.Logout)

	// Role homes
	router.GET("/dashboard", dashboardHandler.Home)
	router.GET("/dashboard/org", dashboardHandler.Org)
	router.GET("/dashboard/brand", dashboardHandler.Brand)
	router.GET("/dashboard/admin", dashboardHandler.Admin)

	api := router.Group("/api")
	{
		org := api.Group("/org")
		org.GET("/profile", orgHandler.GetProfile)
		org.PUT("/profile", orgHandler.PutProfile)
		org.POST("/profile/verification-upload-url", orgHandler.VerificationUploadURL)
		org.GET("/events", eventHandler.List)
		org.POST("/events", eventHandler.Create)
		org.GET("/events/:id", eventHandler.Get)
		org.PATCH("/events/:id", eventHandler.Update)
		org.POST("/events/:id/status", eventHandler.SetStatus)

		brand := api.Group("/brand")
		brand.GET("/profile", brandHandler.GetProfile)
		brand.PUT("/profile", brandHandler.PutProfile)
		brand.POST("/profile/logo-upload-url", brandHandler.LogoUploadURL)
		brand.GET("/events", brandHandler.DiscoverEvents)
		brand.POST("/events/:id/contact", messageHandler.Contact)
		brand.GET("/matches", brandHandler.Matches)

		api.GET("/threads", messageHandler.ListThreads)
		api.GET("/threads/:id/messages", messageHandler.ListMessages)
		api.POST("/threads/:id/messages", messageHandler.PostMessage)

		adm := api.Group("/admin")
		adm.GET("/users", adminHandler.ListUsers)
		adm.GET("/orgs", adminHandler.ListOrgs)
		adm.GET("/brands", adminHandler.ListBrands)
		adm.PATCH("/orgs/:id/status", adminHandler.SetOrgStatus)
		adm.PATCH("/brands/:id/status", adminHandler.SetBrandStatus)
		adm.POST("/matches/recompute", adminHandler.Recompute)
		adm.GET("/events/:id/matches", adminHandler.EventMatches)
	}

	router.GET("/ws/threads/:id", messageHandler.Stream)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// assetSigner keeps a nil *storage.S3 from becoming a non-nil interface.
func assetSigner[T any](s *storage.S3) T {
	var none T
	if s == nil {
		return none
	}
	return any(s).(T)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
