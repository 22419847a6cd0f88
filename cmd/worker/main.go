// Package main runs the background finalize worker (artifact verification
// and size backfill after egress completes).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/multispeaker/backend/config"
	"github.com/multispeaker/backend/internal/recordings"
	"github.com/multispeaker/backend/internal/worker"
	"github.com/multispeaker/backend/pkg/database"
	"github.com/multispeaker/backend/pkg/queue"
	"github.com/multispeaker/backend/pkg/redis"
	"github.com/multispeaker/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:              cfg.AWS.Region,
		AccessKeyID:         cfg.AWS.AccessKeyID,
		SecretAccessKey:     cfg.AWS.SecretAccessKey,
		RecordingsBucket:    cfg.AWS.RecordingsBucket,
		PresignExpireSec:    cfg.AWS.PresignExpireSec,
		PresignMaxExpireSec: cfg.AWS.PresignMaxExpireSec,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	recRepo := recordings.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewFinalizeProcessor(jobQueue, recRepo, s3Client,
		time.Duration(cfg.AWS.CallTimeoutSec)*time.Second, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
