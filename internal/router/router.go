package router

import (
	"time"

	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/adonhq/assessment-backend/internal/handler"
	"github.com/adonhq/assessment-backend/internal/middleware"
	"github.com/adonhq/assessment-backend/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Exam      *handler.ExamHandler
	AdminExam *handler.AdminExamHandler
	Dashboard *handler.DashboardHandler
	WS        *handler.WSHandler
	System    *handler.SystemHandler
}

// Options carries the pieces of route setup that depend on runtime wiring.
type Options struct {
	Auth middleware.TokenValidator
	// ValidateLimiter throttles identifier validation per client IP.
	ValidateLimiter *middleware.RateLimiter
	// LocalUploadDir is served under /uploads when set.
	LocalUploadDir string
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, opts Options, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	// Identifiers may contain an escaped '/'; match routes on the raw path
	// and unescape the parameter afterwards.
	router.UseRawPath = true
	router.UnescapePathValues = true

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Images and workbooks are already compressed.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality: middleware.DefaultBrotliConfig.Quality,
		Skipper: middleware.SkipPathPrefixes("/uploads/"),
	}))

	// Serve artifacts written by the local blob backend.
	if opts.LocalUploadDir != "" {
		uploadsGroup := router.Group("/uploads")
		uploadsGroup.Use(middleware.CacheControl(3600))
		{
			uploadsGroup.Static("/", opts.LocalUploadDir)
		}
	}

	router.GET("/health", handlers.System.Health)

	// ─── 0. Candidate Group (identifier only, no token) ────────────────
	exams := router.Group("/api/v1/exams")
	{
		validate := []gin.HandlerFunc{}
		if opts.ValidateLimiter != nil {
			validate = append(validate, opts.ValidateLimiter.Middleware())
		}
		validate = append(validate, handlers.Exam.ValidateExamination)
		exams.POST("/validate", validate...)

		exam := exams.Group("/:examination_id")
		exam.Use(middleware.NoStore())
		{
			exam.GET("/progress", handlers.Exam.GetProgress)
			exam.POST("/phases/:phase/start", handlers.Exam.StartPhase)
			exam.GET("/phases/:phase/timer", handlers.Exam.GetTimer)
			exam.POST("/phases/:phase/answers", handlers.Exam.SubmitAnswers)
			exam.POST("/phases/:phase/upload", handlers.Exam.SubmitUpload)
		}
	}

	// ─── 1. Countdown stream ───────────────────────────────────────────
	router.GET("/ws/v1/exams/:examination_id/phases/:phase/countdown", handlers.WS.CountdownStream)

	// ─── 2. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth/admin")
	{
		auth.POST("/login", handlers.Auth.AdminLogin)
		auth.GET("/me", middleware.RequireAdminJWT(opts.Auth), handlers.Auth.GetAdminProfile)
	}

	// ─── 3. Admin Group ────────────────────────────────────────────────
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.RequireAdminJWT(opts.Auth))
	{
		admin.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		admin.GET("/exams", handlers.AdminExam.ListExaminations)
		admin.POST("/exams", handlers.AdminExam.CreateExamination)
		admin.GET("/exams/:examination_id/results", handlers.AdminExam.GetResults)
		admin.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
