package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"hiring-gateway/internal/app"
	"hiring-gateway/internal/config"
	"hiring-gateway/internal/controller"
	"hiring-gateway/internal/logging"
	"hiring-gateway/internal/middleware"
	"hiring-gateway/internal/security"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.InitMetrics()

	// Initialize backends and services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := app.New(ctx, cfg, middleware.OperationMetrics{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize gateway")
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release backends")
		}
	}()

	// Initialize security
	jwtManager := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)
	authMiddleware := security.NewAuthMiddleware(jwtManager, cfg.Security.EnableAuth)

	// Initialize controllers
	controllers := &controller.Controllers{
		Ingest:    controller.NewIngestController(gateway.Ingest),
		Backup:    controller.NewBackupController(gateway.Backups, gateway.Restore),
		Report:    controller.NewReportController(gateway.Reports),
		Operation: controller.NewOperationController(gateway.Recorder),
		Health:    controller.NewHealthController(gateway.DB, gateway.Warehouse, version),
	}

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.PrometheusMiddleware())

	// Add rate limiting if enabled
	if cfg.Security.EnableRateLimit {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPM:             cfg.Security.RateLimitPerMinute,
			Burst:           cfg.Security.RateLimitBurst,
			CleanupInterval: 5 * time.Minute,
		})
		defer rateLimiter.Stop()
		router.Use(rateLimiter.RateLimit())
	}

	router.GET("/metrics", middleware.MetricsHandler())
	controllers.Register(router, authMiddleware)

	// Start server
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
