package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	_ "github.com/gradua/ceremonia-api/api/swagger"
	"github.com/gradua/ceremonia-api/internal/broadcast"
	"github.com/gradua/ceremonia-api/internal/handler"
	"github.com/gradua/ceremonia-api/internal/middleware"
	"github.com/gradua/ceremonia-api/internal/repository"
	"github.com/gradua/ceremonia-api/internal/service"
	"github.com/gradua/ceremonia-api/pkg/cache"
	"github.com/gradua/ceremonia-api/pkg/config"
	"github.com/gradua/ceremonia-api/pkg/database"
	"github.com/gradua/ceremonia-api/pkg/logger"
	corsmiddleware "github.com/gradua/ceremonia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gradua/ceremonia-api/pkg/middleware/requestid"
	"github.com/gradua/ceremonia-api/pkg/retry"
)

// @title Ceremonia API
// @version 1.0.0
// @description Graduation ceremony attendance and seat lookup service
// @BasePath /api
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

	loc, err := time.LoadLocation(cfg.Workbook.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid display timezone", "timezone", cfg.Workbook.Timezone, "error", err)
	}

	attendanceCol, err := excelize.ColumnNameToNumber(cfg.Workbook.AttendanceColumn)
	if err != nil {
		logr.Sugar().Fatalw("invalid attendance column", "column", cfg.Workbook.AttendanceColumn, "error", err)
	}

	store, err := repository.NewSheetRepository(cfg.Workbook.Path, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open workbook", "path", cfg.Workbook.Path, "error", err)
	}
	defer store.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Roster.CacheEnabled {
		redisClient, rerr := cache.NewRedis(cfg.Redis)
		if rerr != nil {
			logr.Sugar().Warnw("redis unavailable, roster cache disabled", "error", rerr)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Roster.CacheTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	var audit *repository.AuditRepository
	if cfg.Audit.Enabled {
		db, derr := database.NewPostgres(cfg.Audit.Database)
		if derr != nil {
			logr.Sugar().Warnw("postgres unavailable, audit trail disabled", "error", derr)
		} else {
			audit = repository.NewAuditRepository(db)
			defer db.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	hub := broadcast.NewHub(cfg.Broadcast.BufferSize, logr, metricsSvc)

	rosterSvc := service.NewRosterService(store, cacheSvc, cfg.Workbook, cfg.Roster, loc, logr, metricsSvc)
	retryPolicy := retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoff, logr)

	attendanceSvc := newAttendanceService(store, rosterSvc, hub, audit, retryPolicy, attendanceCol, loc, validate, logr, metricsSvc)
	adminSvc := service.NewSheetAdminService(store, validate, logr)

	studentH := handler.NewStudentHandler(rosterSvc)
	attendanceH := handler.NewAttendanceHandler(attendanceSvc)
	eventsH := handler.NewEventsHandler(rosterSvc, hub, cfg.Broadcast.KeepaliveInterval)
	sheetH := handler.NewSheetHandler(adminSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if _, err := store.ListSheets(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "workbook unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/students", studentH.List)
	api.GET("/students/:code", studentH.Get)
	api.POST("/attendance", attendanceH.Mark)
	api.GET("/attendance", attendanceH.List)
	api.GET("/attendance/export", attendanceH.Export)
	api.GET("/attendance/events", eventsH.Stream)
	api.GET("/sheets", sheetH.List)
	api.POST("/sheets/set-state", sheetH.SetState)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting",
		"addr", addr,
		"env", cfg.Env,
		"workbook", cfg.Workbook.Path,
		"seat_policy", cfg.Workbook.SeatPolicy,
		"timezone", cfg.Workbook.Timezone)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// A nil *AuditRepository must be passed as a nil interface, otherwise the
// service would call Insert on a nil receiver.
func newAttendanceService(store *repository.SheetRepository, roster *service.RosterService, hub *broadcast.Hub, audit *repository.AuditRepository, policy retry.Policy, attendanceCol int, loc *time.Location, validate *validator.Validate, logr *zap.Logger, metrics *service.MetricsService) *service.AttendanceService {
	if audit == nil {
		return service.NewAttendanceService(store, roster, hub, nil, policy, attendanceCol, loc, validate, logr, metrics)
	}
	return service.NewAttendanceService(store, roster, hub, audit, policy, attendanceCol, loc, validate, logr, metrics)
}
