// Package main runs the recording session HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/multispeaker/backend/config"
	"github.com/multispeaker/backend/internal/artifacts"
	"github.com/multispeaker/backend/internal/auth"
	"github.com/multispeaker/backend/internal/livekit"
	"github.com/multispeaker/backend/internal/middleware"
	"github.com/multispeaker/backend/internal/participants"
	"github.com/multispeaker/backend/internal/recordings"
	"github.com/multispeaker/backend/internal/rooms"
	"github.com/multispeaker/backend/internal/worker"
	"github.com/multispeaker/backend/pkg/database"
	"github.com/multispeaker/backend/pkg/queue"
	"github.com/multispeaker/backend/pkg/redis"
	"github.com/multispeaker/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	lk, err := livekit.NewClient(livekit.Config{
		URL:         cfg.LiveKit.URL,
		APIKey:      cfg.LiveKit.APIKey,
		APISecret:   cfg.LiveKit.APISecret,
		TokenTTL:    time.Duration(cfg.LiveKit.TokenTTLHours) * time.Hour,
		CallTimeout: time.Duration(cfg.LiveKit.CallTimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("livekit", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Rooms and membership
	participantRepo := participants.NewRepository(pool)
	roomRepo := rooms.NewRepository(pool)
	roomSvc := rooms.NewService(roomRepo, logger)
	roomSvc.SetMembership(participantRepo)
	roomHandler := rooms.NewHandler(roomSvc, roomRepo, participantRepo, lk, logger)

	// Recording lifecycle
	accessKey, secretKey := s3Client.Credentials()
	egressTarget := livekit.S3Target{
		AccessKey: accessKey,
		Secret:    secretKey,
		Region:    s3Client.Region(),
		Bucket:    s3Client.Bucket(),
	}
	recordingRepo := recordings.NewRepository(pool)
	recordingSvc := recordings.NewService(recordingRepo, lk, egressTarget, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	recordingSvc.SetFinalizer(jobQueue)
	recordingHandler := recordings.NewHandler(recordingSvc, roomSvc, logger)
	recordingWebhook := recordings.NewWebhookHandler(recordingSvc, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, logger)
	storeTimeout := time.Duration(cfg.AWS.CallTimeoutSec) * time.Second
	finalizeProcessor := worker.NewFinalizeProcessor(jobQueue, recordingRepo, s3Client, storeTimeout, logger)
	roomHandler.SetArtifactCleanup(recordingRepo, s3Client)

	// Artifact downloads
	resolver := artifacts.NewResolver(s3Client, roomSvc, s3Client.PresignExpire(), s3Client.PresignMaxExpire(), storeTimeout, logger)
	artifactHandler := artifacts.NewHandler(resolver, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", authHandler.Me)

		// Rooms
		api.GET("/rooms", roomHandler.List)
		api.POST("/rooms", roomHandler.Create)
		api.POST("/rooms/:id/join", roomHandler.Join)
		api.GET("/rooms/:id/participants", roomHandler.Participants)
		api.PATCH("/rooms/:id", roomHandler.Rename)
		api.DELETE("/rooms/:id", roomHandler.Delete)

		// Recordings
		api.GET("/rooms/:id/recordings", recordingHandler.ListByRoom)
		api.POST("/rooms/:id/recordings/start", recordingHandler.Start)
		api.POST("/recordings/:id/stop", recordingHandler.Stop)
		api.GET("/recordings/download-url", artifactHandler.DownloadURL)
	}

	// Webhooks (no JWT; the handler verifies the media server signature)
	router.POST("/webhooks/livekit", recordingWebhook.Handle)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (artifact size reconciliation)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go finalizeProcessor.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
