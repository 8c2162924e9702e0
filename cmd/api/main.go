package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lordevs/legacyverse-backend/internal/api"
	"github.com/Lordevs/legacyverse-backend/internal/auth"
	"github.com/Lordevs/legacyverse-backend/internal/cache"
	"github.com/Lordevs/legacyverse-backend/internal/config"
	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/logging"
	"github.com/Lordevs/legacyverse-backend/internal/media"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
	"github.com/Lordevs/legacyverse-backend/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.MustNew(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	logger.Info("api bootstrapped",
		zap.String("db_host", cfg.Database.Host),
		zap.Int("db_port", cfg.Database.Port),
		zap.String("db_name", cfg.Database.Name),
		zap.String("db_sslmode", cfg.Database.SSLMode),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}
	logger.Info("database migrated")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		logger.Fatal("init storage client", zap.Error(err))
	}
	logger.Info("storage client ready", zap.String("bucket", cfg.MinIO.Bucket))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", zap.Error(err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("ping redis", zap.Error(err))
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", zap.Error(err))
		}
	}()

	authService, err := auth.NewAuthServiceFromConfig(cfg.Auth)
	if err != nil {
		logger.Fatal("init auth service", zap.Error(err))
	}

	// 邮件投递不在本服务内，令牌只写入日志。
	resets := auth.NewPasswordResetService(db, auth.LogResetSender{Logger: logger.Named("password_reset")}, cfg.Auth.ResetTokenTTL)

	if cfg.Media.ClamdAddr == "" {
		logger.Warn("CLAMD_ADDR not set, uploads are not virus scanned")
	}
	processor := media.NewProcessor(media.NewScanner(cfg.Media.ClamdAddr), cfg.Media.MaxDimension, cfg.Media.MaxImageBytes)
	profiles := profile.NewService(db, storageClient, processor,
		cache.NewProfileCache(redisClient, cfg.Cache.PublicProfileTTL),
		logger.Named("profile"),
		profile.Options{MaxImagesPerUpload: cfg.Media.MaxImagesPerUpload, URLTTL: cfg.MinIO.PresignTTL},
	)

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, api.Dependencies{
		Config:   cfg,
		DB:       db,
		Auth:     authService,
		Resets:   resets,
		Profiles: profiles,
		Redis:    redisClient,
		Queue:    asynqClient,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start api server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
