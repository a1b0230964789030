// Package app wires configuration into the running scoring stack shared by
// the API server and the standalone pipeline.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ajharbinger/moat-scoring/internal/analyzer"
	"github.com/ajharbinger/moat-scoring/internal/database"
	"github.com/ajharbinger/moat-scoring/internal/evidence"
	"github.com/ajharbinger/moat-scoring/internal/graph"
	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/repository"
	"github.com/ajharbinger/moat-scoring/internal/scoring"
	"github.com/ajharbinger/moat-scoring/internal/services"
	"github.com/ajharbinger/moat-scoring/pkg/config"
)

// App holds the long-lived collaborators and owns their connections.
type App struct {
	DB       *database.DB
	Services *services.Services
	// Health is nil when no analyzer is configured.
	Health *analyzer.HealthMonitor
	// Redis is nil when no cache is configured or it was unreachable.
	Redis *redis.Client

	cache *analyzer.RedisStore
	graph *graph.Neo4jSource
	log   logger.Logger
}

// Build connects to the database, runs migrations, and assembles the
// scoring services. Redis and Neo4j are optional: when unreachable they are
// logged and skipped.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &App{DB: db, log: log}

	pillarAnalyzer, err := a.buildAnalyzer(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	var src graph.Source
	if cfg.HasGraph() {
		neo, err := graph.NewNeo4jSource(ctx, cfg.Graph)
		if err != nil {
			log.Warn("Graph source unavailable, network centrality treated as absent", "error", err.Error())
		} else {
			a.graph = neo
			src = neo
		}
	}

	companies := repository.NewRepositories(db.DB).Company
	a.Services = services.NewServices(db.DB, services.Dependencies{
		Collector: evidence.NewCollector(companies, src, log.With("component", "evidence")),
		Engine:    scoring.NewEngine(pillarAnalyzer, cfg.Analyzer.Timeout, log.With("component", "engine")),
		Logger:    log,
		Pipeline:  cfg.Pipeline,
	})
	return a, nil
}

func (a *App) buildAnalyzer(ctx context.Context, cfg *config.Config) (scoring.PillarAnalyzer, error) {
	if cfg.Analyzer.RedisURL != "" {
		store, err := analyzer.NewRedisStore(ctx, cfg.Analyzer.RedisURL)
		if err != nil {
			a.log.Warn("Redis unavailable, analysis cache and shared rate limits disabled", "error", err.Error())
		} else {
			a.cache = store
			a.Redis = store.Client()
		}
	}

	if !cfg.HasAnalyzer() {
		a.log.Warn("No analyzer API key configured, scoring on hard signals only")
		return nil, nil
	}

	client, err := analyzer.NewClient(cfg.Analyzer, a.log.With("component", "analyzer"))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer client: %w", err)
	}

	a.Health = analyzer.NewHealthMonitor()
	var pa scoring.PillarAnalyzer = a.Health.Wrap(analyzer.NewLLMAnalyzer(client))
	if a.cache != nil {
		pa = analyzer.NewCachingAnalyzer(pa, a.cache, cfg.Analyzer.CacheTTL, a.log.With("component", "analysis_cache"))
	}
	return pa, nil
}

// Close releases every connection the app opened.
func (a *App) Close(ctx context.Context) {
	if a.graph != nil {
		if err := a.graph.Close(ctx); err != nil {
			a.log.Warn("Failed to close graph driver", "error", err.Error())
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("Failed to close redis client", "error", err.Error())
		}
	}
	if err := a.DB.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err.Error())
	}
}
