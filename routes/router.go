package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/controllers"
	"github.com/cppla/novelhub/metrics"
	"github.com/cppla/novelhub/middleware"
	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/services"
	"github.com/cppla/novelhub/store"
	"github.com/cppla/novelhub/utils"
)

// Dependencies are the long-lived collaborators the handlers share.
type Dependencies struct {
	Content *store.ContentStore
	Views   *services.ViewService
	Sweeper *services.Sweeper
	// Gatherer backs the metrics endpoint; nil disables it.
	Gatherer prometheus.Gatherer
	// AccessLog overrides the rolling gin log file.
	AccessLog *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Dependencies) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())

	gl := deps.AccessLog
	if gl == nil {
		var err error
		// Replace default console logger with file-based zap logger
		gl, err = utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			utils.L().Sugar().Warnf("gin access log disabled: %v", err)
			gl = utils.L()
		}
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.GET(cfg.MetricsPath, gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	db := deps.Content.DB()
	authController := controllers.NewAuthController(db)
	novelController := controllers.NewNovelController(db)
	chapterController := controllers.NewChapterController(deps.Content)
	libraryController := controllers.NewLibraryController(db)
	statsController := controllers.NewStatsController(db)
	viewController := controllers.NewViewController(deps.Views, cfg)
	cronController := controllers.NewCronController(deps.Sweeper)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// View counting and the scheduler hook answer with their own fixed payloads
	api.POST("/views", middleware.RateLimit(cfg.RateLimitPerMinute*10), viewController.RecordView)
	api.GET("/cron/publish", cronController.PublishScheduled)
	api.POST("/cron/publish", cronController.PublishScheduled)

	public := api.Group("")
	public.Use(middleware.OptionalAuth())
	public.GET("/novels", novelController.ListNovels)
	public.GET("/novels/trending", novelController.Trending)
	public.GET("/novels/:id", novelController.GetNovel)
	public.GET("/novels/:id/chapters", chapterController.ListChapters)
	public.GET("/chapters/:id", chapterController.GetChapter)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimit(cfg.RateLimitPerMinute))
	protected.GET("/users/me/novels", novelController.ListMyNovels)
	protected.POST("/novels", middleware.RequireRole(models.RoleAuthor, models.RoleTranslator, models.RoleAdmin), novelController.CreateNovel)
	protected.PATCH("/novels/:id", novelController.UpdateNovel)
	protected.DELETE("/novels/:id", novelController.DeleteNovel)
	protected.POST("/novels/:id/chapters", chapterController.CreateChapter)
	protected.PATCH("/chapters/:id", chapterController.UpdateChapter)
	protected.DELETE("/chapters/:id", chapterController.DeleteChapter)
	protected.POST("/chapters/:id/publish", chapterController.PublishChapter)
	protected.GET("/library", libraryController.ListLibrary)
	protected.POST("/library/:id", libraryController.AddToLibrary)
	protected.DELETE("/library/:id", libraryController.RemoveFromLibrary)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
