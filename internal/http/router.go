package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/tadasupo/backend/internal/config"
	"github.com/tadasupo/backend/internal/http/handlers"
	"github.com/tadasupo/backend/internal/http/middleware"
	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/service"

	_ "github.com/tadasupo/backend/docs"
)

type Deps struct {
	Service  *service.CaseService
	Identity *identity.Resolver
	Ping     func(ctx context.Context) error
	// FilesDir is served under /api/files to identified callers when
	// attachments are stored locally.
	FilesDir string
	Logger   zerolog.Logger
}

func Router(cfg config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.DevEmailHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Service:        deps.Service,
		Validator:      validator.New(),
		Logger:         deps.Logger,
		Ping:           deps.Ping,
		MaxUploadBytes: cfg.MaxUploadSizeMB << 20,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api := r.Group("/api")
	api.Use(middleware.Identity(deps.Identity, cfg.JWTSecret))
	if deps.FilesDir != "" {
		api.Static("/files", deps.FilesDir)
	}
	{
		api.GET("/initial-data", h.InitialData)
		api.GET("/cases", h.CasesList)
		api.POST("/cases/:id/assign", h.Assign)
		api.POST("/cases/:id/decline", h.Decline)
		api.POST("/cases/:id/reopen", h.Reopen)
		api.PUT("/cases/:id/record", h.UpdateRecord)
		api.POST("/cases/:id/emails", h.SendEmail)
		api.GET("/cases/:id/threads", h.Threads)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/panel", h.AdminPanel)
		admin.PUT("/staff", h.UpsertStaff)
		admin.DELETE("/staff/:email", h.DeactivateStaff)
		admin.PATCH("/settings", h.UpdateSettings)
		admin.PUT("/cases/:id/status", h.AdminSetStatus)
		admin.PATCH("/cases/:id", h.AdminUpdateCase)
		admin.POST("/cases/:id/reassign", h.AdminReassign)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
