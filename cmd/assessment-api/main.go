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

	_ "github.com/obeplatform/assessment-api/api/swagger"
	"github.com/obeplatform/assessment-api/internal/handler"
	"github.com/obeplatform/assessment-api/internal/middleware"
	"github.com/obeplatform/assessment-api/internal/repository"
	"github.com/obeplatform/assessment-api/internal/service"
	"github.com/obeplatform/assessment-api/pkg/cache"
	"github.com/obeplatform/assessment-api/pkg/clock"
	"github.com/obeplatform/assessment-api/pkg/config"
	"github.com/obeplatform/assessment-api/pkg/database"
	"github.com/obeplatform/assessment-api/pkg/logger"
	corsmiddleware "github.com/obeplatform/assessment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/obeplatform/assessment-api/pkg/middleware/requestid"
)

// @title Assessment Publish API
// @version 1.0.0
// @description Mark-table lock, publish-window and approval workflow engine
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, decision cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	clk := clock.System{}
	metrics := service.NewMetricsService()

	lockRepo := repository.NewLockRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	resetRepo := repository.NewResetRepository(db)
	userRepo := repository.NewUserRepository(db)

	var decisionCache *repository.CacheRepository
	if redisClient != nil && cfg.Windows.CacheEnabled {
		decisionCache = repository.NewCacheRepository(redisClient, logr)
		defer decisionCache.Close() //nolint:errcheck
	}

	resolver := service.NewLockResolver(service.DefaultResolverPolicy())
	var lockSvc *service.LockService
	if decisionCache != nil {
		lockSvc = service.NewLockService(lockRepo, resetRepo, decisionCache, resolver, clk, cfg.Windows.DecisionCacheTTL, logr)
	} else {
		lockSvc = service.NewLockService(lockRepo, resetRepo, nil, resolver, clk, cfg.Windows.DecisionCacheTTL, logr)
	}

	windowSvc := service.NewWindowService(scheduleRepo, approvalRepo, lockSvc, clk, metrics, logr)

	notifier := service.NewNotifierService(cfg.Notifier, notificationRepo, userRepo, metrics, logr)
	approvalSvc := service.NewApprovalService(
		approvalRepo, outboxRepo, lockSvc, notifier,
		service.AllowAllRequests(),
		service.ApprovalLimits{MinWindowMinutes: cfg.Approvals.MinWindowMinutes, MaxWindowMinutes: cfg.Approvals.MaxWindowMinutes},
		validate, clk, logr,
	)
	resetSvc := service.NewResetService(resetRepo, clk, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "assessment-api",
	})

	outboxWorker := service.NewOutboxWorker(outboxRepo, cfg.Approvals.OutboxDrainInterval, clk, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier.Start(ctx)
	outboxWorker.Start(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Locks:     handler.NewLockHandler(lockSvc),
		Windows:   handler.NewWindowHandler(windowSvc),
		Approvals: handler.NewApprovalHandler(approvalSvc),
		Resets:    handler.NewResetHandler(resetSvc),
	}, authSvc)

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
		logr.Sugar().Warnw("server shutdown", "error", err)
	}

	notifier.Stop()
	outboxWorker.Wait()
}
