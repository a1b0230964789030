package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ajharbinger/moat-scoring/internal/app"
	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/pkg/config"
)

func main() {
	once := flag.Bool("once", false, "run a single scoring cycle and exit")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.New()

	appLogger, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize application", err)
	}
	defer application.Close(context.Background())

	pipeline := application.Services.Pipeline

	appLogger.Info("Pipeline configuration",
		"batch_size", cfg.Pipeline.BatchSize,
		"max_concurrent", cfg.Pipeline.MaxConcurrent,
		"schedule", cfg.Pipeline.Schedule,
		"rescore_older_than_days", cfg.Pipeline.RescoreOlderThanDays,
		"analyzer", cfg.HasAnalyzer(),
		"graph", cfg.HasGraph())

	if *once {
		stats, err := pipeline.RunOnce(ctx)
		if err != nil {
			appLogger.Error("One-time scoring failed", err)
			return
		}
		appLogger.Info("One-time scoring completed",
			"duration", stats.Duration.Round(time.Second).String(),
			"found", stats.CompaniesFound,
			"summary", stats.Summary())
		return
	}

	if err := pipeline.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start pipeline", err)
	}
	appLogger.Info("Automated scoring pipeline is running")

	<-ctx.Done()
	appLogger.Info("Shutdown signal received, stopping pipeline")

	if err := pipeline.Stop(); err != nil {
		appLogger.Error("Error stopping pipeline", err)
		return
	}
	appLogger.Info("Pipeline stopped")
}
