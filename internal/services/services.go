package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/repository"
	"github.com/ajharbinger/moat-scoring/internal/scoring"
	"github.com/ajharbinger/moat-scoring/pkg/config"
)

// Services contains all application services
type Services struct {
	Company  CompanyService
	Scoring  ScoringService
	Pipeline *ScoringPipeline
}

// ScoringService defines the interface for scoring business logic
type ScoringService interface {
	// ScoreCompany runs one scoring pass and persists its outcome.
	ScoreCompany(ctx context.Context, companyID uuid.UUID) (*ScoreResult, error)
	GetScoringHistory(ctx context.Context, companyID uuid.UUID, limit int) (*ScoringHistory, error)
	// ScoreBatch never fails as a whole; per-company failures are summarised.
	ScoreBatch(ctx context.Context, companyIDs []uuid.UUID, maxConcurrent int) BatchSummary
}

// EvidenceCollector gathers the inputs for one scoring pass.
type EvidenceCollector interface {
	Collect(ctx context.Context, companyID uuid.UUID) (scoring.Evidence, error)
}

// ScoreResult is what a caller of ScoreCompany sees.
type ScoreResult struct {
	CompanyID     uuid.UUID              `json:"company_id"`
	ScoringStatus models.ScoringStatus   `json:"scoring_status"`
	MoatScore     *int                   `json:"moat_score"`
	Tier          *models.Tier           `json:"tier"`
	Attributes    *models.MoatAttributes `json:"moat_attributes"`
	AnalysisMode  models.AnalysisMode    `json:"analysis_mode,omitempty"`
	Degraded      bool                   `json:"degraded"`
	Event         *models.ScoringEvent   `json:"event,omitempty"`
	ScoredAt      time.Time              `json:"scored_at"`
}

// ScoringHistory is a company's current score plus its most recent events.
type ScoringHistory struct {
	CompanyID     uuid.UUID             `json:"company_id"`
	CurrentScore  *int                  `json:"current_score"`
	CurrentTier   *models.Tier          `json:"current_tier"`
	ScoringStatus models.ScoringStatus  `json:"scoring_status"`
	LastScoredAt  *time.Time            `json:"last_scored_at"`
	TotalEvents   int                   `json:"total_events"`
	Events        []models.ScoringEvent `json:"events"`
}

// BatchFailure records one company that could not be scored.
type BatchFailure struct {
	CompanyID uuid.UUID `json:"company_id"`
	Code      string    `json:"code"`
	Error     string    `json:"error"`
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	Total        int            `json:"total"`
	Scored       int            `json:"scored"`
	Insufficient int            `json:"insufficient_data"`
	Degraded     int            `json:"degraded"`
	Failed       int            `json:"failed"`
	Failures     []BatchFailure `json:"failures"`
	Duration     time.Duration  `json:"duration"`
}

// Dependencies are the collaborators NewServices wires together.
type Dependencies struct {
	Collector EvidenceCollector
	Engine    *scoring.Engine
	Logger    logger.Logger
	Pipeline  config.PipelineConfig
}

// NewServices creates a new Services instance with all dependencies
func NewServices(db *sql.DB, deps Dependencies) *Services {
	repos := repository.NewRepositories(db)
	svc := NewScoringService(repos, deps.Collector, deps.Engine, deps.Logger)

	return &Services{
		Company:  NewCompanyService(repos),
		Scoring:  svc,
		Pipeline: NewScoringPipeline(repos.Company, svc, deps.Pipeline, deps.Logger),
	}
}
