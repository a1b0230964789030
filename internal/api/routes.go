package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/moat-scoring/internal/auth"
	"github.com/ajharbinger/moat-scoring/internal/services"
	"github.com/ajharbinger/moat-scoring/pkg/config"
)

// Handlers groups everything SetupRoutes mounts.
type Handlers struct {
	Company  *CompanyHandler
	Scoring  *ScoringHandler
	Pipeline *PipelineHandler
	Health   *HealthHandler
}

// NewHandlers builds handlers over the application services.
func NewHandlers(svc *services.Services, db DatabaseChecker, analyzerHealth AnalyzerHealth) *Handlers {
	h := &Handlers{
		Company: NewCompanyHandler(svc.Company),
		Scoring: NewScoringHandler(svc.Scoring),
		Health:  NewHealthHandler(db, analyzerHealth),
	}
	if svc.Pipeline != nil {
		h.Pipeline = NewPipelineHandler(svc.Pipeline)
	}
	return h
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handlers, cfg *config.Config) {
	r.GET("/healthz", h.Health.Healthz)

	protected := r.Group("/api/v1")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	protected.Use(auth.CSRFMiddleware())
	{
		// Companies
		protected.POST("/companies", h.Company.CreateCompany)
		protected.GET("/companies/:id", h.Company.GetCompany)

		// Scoring
		protected.POST("/companies/:id/score", h.Scoring.ScoreCompany)
		protected.GET("/companies/:id/scoring-history", h.Scoring.GetScoringHistory)
		protected.POST("/scoring/batch", h.Scoring.ScoreBatch)

		protected.GET("/analyzer/health", h.Health.GetAnalyzerHealth)

		if h.Pipeline != nil {
			protected.GET("/pipeline/status", h.Pipeline.GetPipelineStatus)
			protected.POST("/pipeline/run-once", h.Pipeline.RunOnce)
		}
	}
}
