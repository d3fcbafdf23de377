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
	"go.uber.org/zap"
	"golang.org/x/text/language"

	_ "github.com/noah-isme/school-events-gateway/api/swagger"
	"github.com/noah-isme/school-events-gateway/internal/client"
	"github.com/noah-isme/school-events-gateway/internal/handler"
	"github.com/noah-isme/school-events-gateway/internal/middleware"
	"github.com/noah-isme/school-events-gateway/internal/repository"
	"github.com/noah-isme/school-events-gateway/internal/service"
	"github.com/noah-isme/school-events-gateway/internal/viewmodel"
	"github.com/noah-isme/school-events-gateway/pkg/cache"
	"github.com/noah-isme/school-events-gateway/pkg/config"
	"github.com/noah-isme/school-events-gateway/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-events-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-events-gateway/pkg/middleware/requestid"
)

// @title School Events Gateway
// @version 0.1.0
// @description JSON presenter for the school event and student lists
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		logr.Warn("unknown locale, falling back to cs", zap.String("locale", cfg.Locale), zap.Error(err))
		locale = language.Czech
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	deps := map[string]handler.Pinger{}
	var guard viewmodel.RegistrationGuard = viewmodel.NewMemoryGuard()
	if cfg.Registration.RedisGuard {
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		locks := repository.NewRegistrationLockRepository(rdb, cfg.Registration.GuardTTL, logger.Named(logr, "registration_lock"))
		defer locks.Close() //nolint:errcheck
		guard = locks
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	api := client.New(client.Params{
		Config:    cfg.Upstream,
		Validator: validator.New(),
		Logger:    logger.Named(logr, "upstream"),
		Metrics:   metrics,
	})

	eventHandler := handler.NewEventHandler(handler.EventHandlerParams{
		Fetcher:   api,
		Registrar: api,
		Guard:     guard,
		Metrics:   metrics,
		Logger:    logger.Named(logr, "events"),
		Locale:    locale,

		SessionCookie: cfg.Upstream.SessionCookie,
	})
	exporter := service.NewRosterExportService(nil, nil, logger.Named(logr, "export"))
	studentHandler := handler.NewStudentHandler(api, exporter, logger.Named(logr, "students"), locale)
	healthHandler := handler.NewHealthHandler(deps)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.NoRoute(middleware.NoRoute())

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/events", eventHandler.List)
	r.POST("/events/:id/register", eventHandler.Register)
	r.GET("/students", studentHandler.List)
	r.GET("/students/export", studentHandler.Export)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	logr.Info("server stopped")
}
