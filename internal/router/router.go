package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	Proctor *handler.ProctorHandler
	Report  *handler.ReportHandler
	Monitor *handler.MonitorHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

// Limiters holds the request-rate limiters. Proctor is keyed per user and is
// shared with the WebSocket stream; Attempt is keyed per client IP.
type Limiters struct {
	Proctor *middleware.RateLimiter
	Attempt *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiters *Limiters,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

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
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	api := router.Group("/api/v1")

	// ─── 1. Attempt lifecycle (JWT, per-IP limit) ──────────────────────
	attempt := api.Group("/attempt")
	attempt.Use(
		limiters.Attempt.Middleware(middleware.KeyByIP),
		middleware.RequireJWT(authService),
	)
	{
		attempt.POST("/start", handlers.Attempt.Start)
		attempt.POST("/submit", handlers.Attempt.Submit)
	}

	// ─── 2. Exam paper (JWT) ───────────────────────────────────────────
	api.GET("/exams/:exam_id",
		middleware.RequireJWT(authService),
		middleware.CacheControl("private, max-age=60"),
		handlers.Attempt.GetPaper,
	)

	// ─── 3. Proctoring (JWT, per-user limit) ───────────────────────────
	proctor := api.Group("/proctor")
	proctor.Use(
		middleware.RequireJWT(authService),
		limiters.Proctor.Middleware(middleware.KeyByUser),
	)
	{
		proctor.POST("/log", handlers.Proctor.Log)
	}

	// ─── 4. Admin (JWT + role; ownership checked per object) ───────────
	admin := api.Group("/admin")
	admin.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(model.RoleAdmin),
		middleware.NoStore(),
	)
	{
		admin.GET("/attempt/:id/report", handlers.Report.GetReport)
		admin.GET("/exams/:id/overdue", handlers.Report.ListOverdue)
		admin.GET("/exams/:id/monitor", handlers.Monitor.MonitorExamSSE)
	}

	// ─── 5. WebSocket (query-token auth) ───────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/proctor/exams/:exam_id/stream", handlers.WS.ProctorStream)
	}

	return router
}
