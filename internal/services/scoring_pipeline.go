package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/repository"
	"github.com/ajharbinger/moat-scoring/pkg/config"
)

// CompanyQueue is the part of the company repository the pipeline reads.
type CompanyQueue interface {
	ListDueForScoring(ctx context.Context, criteria repository.DueCriteria) ([]uuid.UUID, error)
	CountByStatus(ctx context.Context) (map[models.ScoringStatus]int, error)
}

// ScoringPipeline handles automated scoring of companies
type ScoringPipeline struct {
	companies CompanyQueue
	scoring   ScoringService
	config    config.PipelineConfig
	logger    logger.Logger

	mu        sync.RWMutex
	cron      *cron.Cron
	isRunning bool
	lastRun   *PipelineStats
	lastError string

	// cycleMu keeps manual and scheduled cycles from overlapping.
	cycleMu sync.Mutex
	wg      sync.WaitGroup
	now     func() time.Time
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		BatchSize:            50,
		MaxConcurrent:        DefaultMaxConcurrent,
		Schedule:             "@every 60m",
		RescoreOlderThanDays: 30,
	}
}

// NewScoringPipeline creates a new automated scoring pipeline
func NewScoringPipeline(companies CompanyQueue, svc ScoringService, cfg config.PipelineConfig, log logger.Logger) *ScoringPipeline {
	defaults := DefaultPipelineConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaults.Schedule
	}
	if cfg.RescoreOlderThanDays < 0 {
		cfg.RescoreOlderThanDays = 0
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ScoringPipeline{
		companies: companies,
		scoring:   svc,
		config:    cfg,
		logger:    log.With("component", "scoring_pipeline"),
		now:       time.Now,
	}
}

// Start schedules scoring cycles and runs the first one immediately.
func (p *ScoringPipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("pipeline is already running")
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{p.logger}),
		cron.SkipIfStillRunning(cronLogger{p.logger}),
	))
	if _, err := c.AddFunc(p.config.Schedule, func() { p.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("invalid pipeline schedule %q: %w", p.config.Schedule, err)
	}

	p.cron = c
	p.isRunning = true
	c.Start()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runScheduled(ctx)
	}()

	p.logger.Info("Scoring pipeline started",
		"schedule", p.config.Schedule,
		"batch_size", p.config.BatchSize,
		"max_concurrent", p.config.MaxConcurrent)
	return nil
}

// Stop gracefully stops the scoring pipeline, waiting for a running cycle.
func (p *ScoringPipeline) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return fmt.Errorf("pipeline is not running")
	}
	c := p.cron
	p.isRunning = false
	p.cron = nil
	p.mu.Unlock()

	<-c.Stop().Done()
	p.wg.Wait()

	p.logger.Info("Scoring pipeline stopped")
	return nil
}

// IsRunning returns whether the pipeline is currently running
func (p *ScoringPipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// RunOnce executes a single scoring cycle manually
func (p *ScoringPipeline) RunOnce(ctx context.Context) (*PipelineStats, error) {
	return p.executeScoringCycle(ctx)
}

func (p *ScoringPipeline) runScheduled(ctx context.Context) {
	stats, err := p.executeScoringCycle(ctx)
	if err != nil {
		p.logger.Error("Scoring cycle failed", err)
		return
	}
	p.logger.Info("Scoring cycle completed", "summary", stats.Summary())
}

// executeScoringCycle performs one complete scoring cycle
func (p *ScoringPipeline) executeScoringCycle(ctx context.Context) (*PipelineStats, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	stats := &PipelineStats{
		StartTime: p.now(),
		BatchSize: p.config.BatchSize,
	}

	criteria := repository.DueCriteria{Limit: p.config.BatchSize}
	if p.config.RescoreOlderThanDays > 0 {
		criteria.ScoredBefore = stats.StartTime.AddDate(0, 0, -p.config.RescoreOlderThanDays)
	}

	ids, err := p.companies.ListDueForScoring(ctx, criteria)
	if err != nil {
		p.recordRun(stats, err)
		return stats, fmt.Errorf("failed to get companies for scoring: %w", err)
	}
	stats.CompaniesFound = len(ids)

	if len(ids) > 0 {
		summary := p.scoring.ScoreBatch(ctx, ids, p.config.MaxConcurrent)
		stats.CompaniesProcessed = summary.Total
		stats.CompaniesScored = summary.Scored
		stats.CompaniesInsufficient = summary.Insufficient
		stats.CompaniesDegraded = summary.Degraded
		stats.CompaniesFailed = summary.Failed
		stats.Failures = summary.Failures
	} else {
		p.logger.Debug("No companies need scoring at this time")
	}

	stats.EndTime = p.now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	p.recordRun(stats, nil)
	return stats, nil
}

func (p *ScoringPipeline) recordRun(stats *PipelineStats, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *stats
	p.lastRun = &copied
	p.lastError = ""
	if err != nil {
		p.lastError = err.Error()
	}
}

// GetStatus reports scheduler state, the last cycle, and company counts.
func (p *ScoringPipeline) GetStatus(ctx context.Context) (PipelineStatus, error) {
	p.mu.RLock()
	status := PipelineStatus{
		IsRunning: p.isRunning,
		Schedule:  p.config.Schedule,
		LastRun:   p.lastRun,
		LastError: p.lastError,
		Timestamp: p.now(),
	}
	if p.cron != nil {
		if entries := p.cron.Entries(); len(entries) > 0 {
			next := entries[0].Next
			status.NextRun = &next
		}
	}
	p.mu.RUnlock()

	counts, err := p.companies.CountByStatus(ctx)
	if err != nil {
		return status, err
	}
	status.ScoredCompanies = counts[models.StatusScored]
	status.InsufficientCompanies = counts[models.StatusInsufficientData]
	status.PendingCompanies = counts[models.StatusNotScored]
	status.TotalCompanies = status.ScoredCompanies + status.InsufficientCompanies + status.PendingCompanies
	return status, nil
}

// Data structures

type PipelineStats struct {
	StartTime             time.Time      `json:"start_time"`
	EndTime               time.Time      `json:"end_time"`
	Duration              time.Duration  `json:"duration"`
	BatchSize             int            `json:"batch_size"`
	CompaniesFound        int            `json:"companies_found"`
	CompaniesProcessed    int            `json:"companies_processed"`
	CompaniesScored       int            `json:"companies_scored"`
	CompaniesInsufficient int            `json:"companies_insufficient"`
	CompaniesDegraded     int            `json:"companies_degraded"`
	CompaniesFailed       int            `json:"companies_failed"`
	Failures              []BatchFailure `json:"failures,omitempty"`
}

func (s *PipelineStats) Summary() string {
	return fmt.Sprintf("processed=%d, scored=%d, insufficient=%d, degraded=%d, failed=%d, duration=%v",
		s.CompaniesProcessed, s.CompaniesScored, s.CompaniesInsufficient, s.CompaniesDegraded,
		s.CompaniesFailed, s.Duration.Round(time.Millisecond))
}

type PipelineStatus struct {
	IsRunning             bool           `json:"is_running"`
	Schedule              string         `json:"schedule"`
	NextRun               *time.Time     `json:"next_run,omitempty"`
	LastRun               *PipelineStats `json:"last_run,omitempty"`
	LastError             string         `json:"last_error,omitempty"`
	TotalCompanies        int            `json:"total_companies"`
	ScoredCompanies       int            `json:"scored_companies"`
	InsufficientCompanies int            `json:"insufficient_companies"`
	PendingCompanies      int            `json:"pending_companies"`
	Timestamp             time.Time      `json:"timestamp"`
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, err, keysAndValues...)
}
