package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adonhq/assessment-backend/internal/blob"
	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/adonhq/assessment-backend/internal/database"
	"github.com/adonhq/assessment-backend/internal/deadline"
	"github.com/adonhq/assessment-backend/internal/handler"
	"github.com/adonhq/assessment-backend/internal/logger"
	"github.com/adonhq/assessment-backend/internal/middleware"
	"github.com/adonhq/assessment-backend/internal/repository"
	"github.com/adonhq/assessment-backend/internal/router"
	"github.com/adonhq/assessment-backend/internal/service"
	"github.com/adonhq/assessment-backend/internal/validator"
	"github.com/adonhq/assessment-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("blob_backend", cfg.BlobBackend).
		Bool("enforce_deadline", cfg.EnforceDeadline).
		Msg("Starting assessment backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Blob Storage ──────────────────────────────────────────────────
	var (
		blobs          blob.Store
		localUploadDir string
	)
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		s3Store, err := blob.NewS3StoreFromConfig(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure S3 blob storage")
		}
		blobs = s3Store
		log.Info().Str("bucket", cfg.AWSBucket).Msg("Using S3 blob storage")
	case config.BlobBackendLocal:
		blobs = blob.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
		localUploadDir = filepath.Join(cfg.UploadDir, "uploads")
		log.Info().Str("dir", cfg.UploadDir).Msg("Using local blob storage")
	default:
		log.Fatal().Str("backend", cfg.BlobBackend).Msg("Unknown BLOB_BACKEND")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExaminationRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	tracker := deadline.NewTracker(deadline.NewRedisAnchorStore(rdb, cfg.AnchorTTL), cfg.PhaseDuration, nil)
	cleanupQueue := worker.NewCleanupQueue(rdb)

	authService := service.NewAuthService(cfg)
	adminService := service.NewAdminService(adminRepo, authService)
	examinationService := service.NewExaminationService(examRepo, resultRepo)
	queueDepth := func(ctx context.Context) (int64, error) {
		return rdb.LLen(ctx, config.WorkerKey.BlobCleanupQueue).Result()
	}
	dashboardService := service.NewDashboardService(dashboardRepo, queueDepth)
	sessionService := service.NewExamSessionService(
		examRepo,
		resultRepo,
		blobs,
		tracker,
		cleanupQueue,
		service.ExamSessionOptions{
			StoreTimeout:    cfg.StoreTimeout,
			BlobTimeout:     cfg.BlobTimeout,
			EnforceDeadline: cfg.EnforceDeadline,
			MaxUploadBytes:  cfg.MaxUploadBytes,
		},
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	healthChecks := []handler.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}

	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(adminService, log),
		Exam:      handler.NewExamHandler(sessionService, cfg.MaxUploadBytes, log),
		AdminExam: handler.NewAdminExamHandler(examinationService, log),
		Dashboard: handler.NewDashboardHandler(dashboardService, log),
		WS:        handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		System:    handler.NewSystemHandler(healthChecks, queueDepth, cfg.UploadDir, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	cleanupWorker := worker.NewBlobCleanupWorker(rdb, blobs, log)
	go func() {
		defer close(workerDone)
		cleanupWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	validateLimiter := middleware.NewRateLimiter(ctx, cfg.ValidateRatePerMinute, time.Minute)
	r := router.SetupRouter(handlers, router.Options{
		Auth:            authService,
		ValidateLimiter: validateLimiter,
		LocalUploadDir:  localUploadDir,
	}, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Uploads may still be writing,
	// so allow the blob timeout plus a margin.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.BlobTimeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the cleanup worker and wait for its queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Cleanup worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
