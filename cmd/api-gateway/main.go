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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Session scheduling, joint classes, curriculum progress and week propagation.
// @BasePath /api/v1
// @schemes http

type handlers struct {
	sessions    *handler.SessionHandler
	catalog     *handler.CatalogHandler
	holidays    *handler.HolidayHandler
	completions *handler.CompletionOverrideHandler
	metrics     *handler.MetricsHandler
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to prepare schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, progress cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	clock, err := scheduler.ParsePeriodClock(
		cfg.Timetable.MorningStart,
		cfg.Timetable.AfternoonStart,
		cfg.Timetable.PeriodLength,
		cfg.Timetable.Timezone,
	)
	if err != nil {
		logr.Fatal("invalid timetable clock", zap.Error(err))
	}

	validate := validator.New()
	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	sessionRepo := repository.NewSessionRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	overrideRepo := repository.NewCompletionOverrideRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ProgressTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	sessionSvc := service.NewSessionService(
		sessionRepo, subjectRepo, classRepo, teacherRepo, holidayRepo, overrideRepo,
		db, cacheSvc, metricsSvc, validate, logr,
		service.SessionServiceConfig{
			GeneralMajors:           cfg.Timetable.GeneralMajors,
			Clock:                   clock,
			NearCompletionThreshold: cfg.Timetable.NearCompletionThreshold,
			PropagationOffsetDays:   cfg.Timetable.PropagationOffsetDays,
			ProgressTTL:             cfg.Cache.ProgressTTL,
		},
	)
	catalogSvc := service.NewCatalogService(subjectRepo, classRepo, teacherRepo, logr)
	holidaySvc := service.NewHolidayService(holidayRepo, validate, logr)
	overrideSvc := service.NewCompletionOverrideService(overrideRepo, cacheSvc, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))

	registerRoutes(r, cfg, handlers{
		sessions:    handler.NewSessionHandler(sessionSvc),
		catalog:     handler.NewCatalogHandler(catalogSvc),
		holidays:    handler.NewHolidayHandler(holidaySvc),
		completions: handler.NewCompletionOverrideHandler(overrideSvc),
		metrics:     handler.NewMetricsHandler(metricsSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h handlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", h.metrics.Snapshot)

	sessions := api.Group("/sessions")
	sessions.GET("", h.sessions.List)
	sessions.POST("", h.sessions.Create)
	sessions.POST("/propagate", h.sessions.Propagate)
	sessions.PATCH("/:id", h.sessions.Update)
	sessions.DELETE("/:id", h.sessions.Delete)
	sessions.PATCH("/:id/status", h.sessions.UpdateStatus)
	sessions.GET("/:id/siblings", h.sessions.Siblings)

	api.GET("/progress", h.sessions.Progress)

	api.GET("/classes", h.catalog.Classes)
	api.GET("/classes/:id", h.catalog.Class)
	api.GET("/classes/:id/eligible-subjects", h.sessions.EligibleSubjects)

	api.GET("/subjects", h.catalog.Subjects)
	api.GET("/subjects/:id", h.catalog.Subject)
	api.GET("/subjects/:id/shared-classes", h.sessions.SharedClasses)
	api.GET("/subjects/:id/teachers", h.sessions.Teachers)

	api.GET("/teachers/:id", h.catalog.Teacher)

	api.GET("/holidays", h.holidays.List)
	api.POST("/holidays", h.holidays.Create)
	api.DELETE("/holidays/:id", h.holidays.Delete)

	api.GET("/completion-overrides", h.completions.Get)
	api.PUT("/completion-overrides", h.completions.Put)
}
