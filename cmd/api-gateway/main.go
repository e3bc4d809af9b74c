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

	_ "github.com/noah-isme/timetable-engine/api/swagger"
	"github.com/noah-isme/timetable-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	"github.com/noah-isme/timetable-engine/internal/service"
	"github.com/noah-isme/timetable-engine/pkg/cache"
	"github.com/noah-isme/timetable-engine/pkg/config"
	"github.com/noah-isme/timetable-engine/pkg/database"
	"github.com/noah-isme/timetable-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-engine/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-engine/pkg/storage"
)

// @title Timetable Engine API
// @version 1.0.0
// @description Weekly cohort timetable generation, conflict detection and exports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	logr.Info("database connected", zap.Bool("auto_migrate", cfg.Database.AutoMigrate))

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, falling back to in-process cache and locks", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	catalogRepo := repository.NewCatalogRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	slotRepo := repository.NewTimetableSlotRepository(db)
	lockRepo := repository.NewCohortLockRepository(redisClient, cfg.Scheduler.LockTTL)
	cacheRepo := repository.NewCacheRepository(redisClient, "timetable:")

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled && redisClient != nil)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	engine := scheduler.New(scheduler.Config{Logger: logr, LabPhaseBudget: cfg.Scheduler.LabBudget})
	timetableSvc := service.NewTimetableService(catalogRepo, timetableRepo, slotRepo, lockRepo, engine, db, cacheSvc, metricsSvc, validate, logr,
		service.TimetableServiceConfig{DefaultSeed: cfg.Scheduler.DefaultSeed})
	conflictSvc := service.NewConflictService(catalogRepo, timetableRepo, slotRepo, lockRepo, db, cacheSvc, metricsSvc, logr,
		service.ConflictServiceConfig{CacheTTL: cfg.Scheduler.ConflictCacheTTL})
	batchSvc := service.NewBatchService(timetableSvc, validate, metricsSvc, logr, service.BatchConfig{
		Workers:    cfg.Scheduler.BatchWorkers,
		MaxRetries: cfg.Scheduler.BatchRetries,
		RetryDelay: time.Second,
	})

	var archive *storage.LocalStorage
	if cfg.Export.Dir != "" {
		archive, err = storage.NewLocalStorage(cfg.Export.Dir)
		if err != nil {
			logr.Fatal("failed to prepare export directory", zap.Error(err))
		}
	}
	exportSvc := service.NewExportService(timetableSvc, exportArchive(archive), logr, nil, nil, nil)

	batchSvc.Start(ctx)
	defer batchSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Config{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db.PingContext, redisClient))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, internalmiddleware.WithResponseMeta(), internalmiddleware.JWT(authSvc))
	api.GET("/metrics/summary", internalmiddleware.RequireRoles(models.RoleAdmin), metricsHandler.Summary)
	if cfg.Scheduler.Enabled {
		registerTimetableRoutes(api, routeHandlers{
			timetables: handler.NewTimetableHandler(timetableSvc),
			conflicts:  handler.NewConflictHandler(conflictSvc),
			exports:    handler.NewExportHandler(exportSvc),
			batches:    handler.NewBatchHandler(batchSvc),
		}, logr)
	} else {
		logr.Info("scheduler disabled, timetable routes not registered")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
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

// exportArchive avoids handing the service a typed nil.
func exportArchive(s *storage.LocalStorage) interface {
	Save(filename string, data []byte) (string, error)
} {
	if s == nil {
		return nil
	}
	return s
}

func readinessChecks(pingDB func(context.Context) error, client *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{"postgres": pingDB}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}
