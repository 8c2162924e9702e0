package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lordevs/legacyverse-backend/internal/cache"
	"github.com/Lordevs/legacyverse-backend/internal/config"
	"github.com/Lordevs/legacyverse-backend/internal/database"
	"github.com/Lordevs/legacyverse-backend/internal/logging"
	"github.com/Lordevs/legacyverse-backend/internal/media"
	"github.com/Lordevs/legacyverse-backend/internal/metrics"
	"github.com/Lordevs/legacyverse-backend/internal/profile"
	"github.com/Lordevs/legacyverse-backend/internal/storage"
	"github.com/Lordevs/legacyverse-backend/internal/tasks"
	"github.com/Lordevs/legacyverse-backend/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.MustNew(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("init database", zap.Error(err))
	}
	logger.Info("database connection ready for worker")

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

	// 清理任务不上传图片，processor 只为满足 Service 构造参数。
	processor := media.NewProcessor(media.NopScanner{}, cfg.Media.MaxDimension, cfg.Media.MaxImageBytes)
	profiles := profile.NewService(db, storageClient, processor,
		cache.NewProfileCache(redisClient, cfg.Cache.PublicProfileTTL),
		logger.Named("profile"),
		profile.Options{MaxImagesPerUpload: cfg.Media.MaxImagesPerUpload, URLTTL: cfg.MinIO.PresignTTL},
	)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
	})

	sweepHandler := worker.NewSweepTaskHandler(profiles, redisClient, logger.Named("sweep"))

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeSweepOrphanImages, sweepHandler)

	logger.Info("worker service started", zap.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", zap.Error(err))
	}
}
