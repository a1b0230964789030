package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ajharbinger/moat-scoring/internal/api"
	"github.com/ajharbinger/moat-scoring/internal/app"
	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/middleware"
	"github.com/ajharbinger/moat-scoring/pkg/config"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.New()

	appLogger, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync(appLogger)

	if cfg.JWTSecret == "" {
		appLogger.Fatal("JWT_SECRET must be set", nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize application", err)
	}
	defer application.Close(context.Background())

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.GetTrustedProxies()); err != nil {
		appLogger.Fatal("Invalid TRUSTED_PROXIES", err)
	}

	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger.With("component", "http")))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg))
	r.Use(middleware.InputValidationMiddleware(cfg.MaxRequestSize))

	if cfg.EnableRateLimit {
		var limiter middleware.RateLimiter = middleware.NewMemoryLimiter(100, time.Minute)
		if application.Redis != nil {
			limiter = middleware.NewRedisLimiter(application.Redis, 100, time.Minute)
		}
		r.Use(middleware.RateLimitingMiddleware(limiter, time.Minute, appLogger))
	}

	var analyzerHealth api.AnalyzerHealth
	if application.Health != nil {
		analyzerHealth = application.Health
	}
	api.SetupRoutes(r, api.NewHandlers(application.Services, application.DB, analyzerHealth), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Graceful shutdown failed", err)
	}
}
