package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/staffops/staffing-api/api/swagger"
	"github.com/staffops/staffing-api/internal/handler"
	"github.com/staffops/staffing-api/internal/middleware"
	"github.com/staffops/staffing-api/internal/models"
	"github.com/staffops/staffing-api/internal/repository"
	"github.com/staffops/staffing-api/internal/service"
	"github.com/staffops/staffing-api/pkg/cache"
	"github.com/staffops/staffing-api/pkg/config"
	"github.com/staffops/staffing-api/pkg/database"
	"github.com/staffops/staffing-api/pkg/logger"
	corsmiddleware "github.com/staffops/staffing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/staffops/staffing-api/pkg/middleware/requestid"
)

// @title Staffing API
// @version 1.0.0
// @description Shift lifecycle and settlement engine for temp staffing
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, listing cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	notifySvc := service.NewNotificationService(logr, cfg.Notifications.Workers, cfg.Notifications.BufferSize, cfg.Notifications.MaxRetries)
	notifySvc.Start(ctx)
	defer notifySvc.Stop()

	metricsSvc := service.NewMetricsService(notifySvc.QueueDepth)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "staffing-api",
	}, nil)
	projectSvc := service.NewProjectService(projectRepo, validate, logr, nil)
	shiftSvc := service.NewShiftService(shiftRepo, projectRepo, cacheRepo, cfg.Shifts.ListCacheTTL, validate, logr, nil)
	applicationSvc := service.NewApplicationService(applicationRepo, shiftRepo, notifySvc, metricsSvc, shiftSvc, validate, logr, nil)
	applicationSvc.SetRetryPolicy(cfg.Settlement.MaxRetries, cfg.Settlement.RetryDelay)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, applicationRepo, shiftRepo, notifySvc, metricsSvc, validate, logr, nil, cfg.Attendance.ClockInGrace)
	settlementSvc := service.NewSettlementService(paymentRepo, notifySvc, metricsSvc, validate, logr, nil, cfg.Settlement.MaxRetries, cfg.Settlement.RetryDelay)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, validate, logr, nil)

	authHandler := handler.NewAuthHandler(authSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)
	shiftHandler := handler.NewShiftHandler(shiftSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	paymentHandler := handler.NewPaymentHandler(settlementSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/projects", projectHandler.List)
	authed.GET("/projects/:id", projectHandler.Get)
	authed.POST("/projects", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), projectHandler.Create)
	authed.PATCH("/projects/:id/status", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), projectHandler.UpdateStatus)

	authed.GET("/shifts", shiftHandler.List)
	authed.GET("/shifts/:id", shiftHandler.Get)
	authed.POST("/shifts", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), shiftHandler.Create)
	authed.PUT("/shifts/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), shiftHandler.Update)
	authed.DELETE("/shifts/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), shiftHandler.Delete)

	authed.GET("/applications", applicationHandler.List)
	authed.POST("/applications", middleware.RequireRoles(models.RoleStaff), applicationHandler.Apply)
	authed.POST("/applications/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), applicationHandler.Approve)
	authed.POST("/applications/:id/reject", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), applicationHandler.Reject)
	authed.POST("/applications/:id/cancel", middleware.RequireRoles(models.RoleStaff), applicationHandler.Cancel)

	authed.GET("/attendances", attendanceHandler.List)
	authed.POST("/attendances/clock-in", middleware.RequireRoles(models.RoleStaff), attendanceHandler.ClockIn)
	authed.POST("/attendances/:id/clock-out", middleware.RequireRoles(models.RoleStaff), attendanceHandler.ClockOut)
	authed.POST("/attendances/:id/approve", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), attendanceHandler.Approve)
	authed.POST("/attendances/:id/reject", middleware.RequireRoles(models.RoleAdmin, models.RoleClient), attendanceHandler.Reject)

	authed.GET("/payments", paymentHandler.List)
	authed.GET("/payments/:id", paymentHandler.Get)
	authed.GET("/payments/:id/statement", paymentHandler.ExportStatement)
	authed.POST("/payments/generate", middleware.RequireRoles(models.RoleAdmin), paymentHandler.Generate)
	authed.POST("/payments/:id/processing", middleware.RequireRoles(models.RoleAdmin), paymentHandler.MarkProcessing)
	authed.POST("/payments/:id/complete", middleware.RequireRoles(models.RoleAdmin), paymentHandler.MarkCompleted)

	authed.GET("/availability", availabilityHandler.List)
	authed.PUT("/availability", middleware.RequireRoles(models.RoleStaff), availabilityHandler.Set)
	authed.PUT("/availability/range", middleware.RequireRoles(models.RoleStaff), availabilityHandler.SetRange)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
