package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ajharbinger/moat-scoring/internal/repository"
	"github.com/ajharbinger/moat-scoring/internal/services"
)

// MaxBatchSize caps the number of companies one batch request may name.
const MaxBatchSize = 500

// ScoringHandler exposes scoring passes and history over HTTP.
type ScoringHandler struct {
	scoringService services.ScoringService
	scoreTimeout   time.Duration
}

// NewScoringHandler creates a new scoring handler
func NewScoringHandler(scoringService services.ScoringService) *ScoringHandler {
	return &ScoringHandler{
		scoringService: scoringService,
		scoreTimeout:   2 * time.Minute,
	}
}

// ScoreCompany runs one scoring pass for a company
func (h *ScoringHandler) ScoreCompany(c *gin.Context) {
	id, ok := companyID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.scoreTimeout)
	defer cancel()

	result, err := h.scoringService.ScoreCompany(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// GetScoringHistory returns the company's current score and recent events
func (h *ScoringHandler) GetScoringHistory(c *gin.Context) {
	id, ok := companyID(c)
	if !ok {
		return
	}

	limit := repository.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	history, err := h.scoringService.GetScoringHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

type batchRequest struct {
	CompanyIDs    []uuid.UUID `json:"company_ids" binding:"required"`
	MaxConcurrent int         `json:"max_concurrent"`
}

// ScoreBatch scores several companies and reports per-company failures
func (h *ScoringHandler) ScoreBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format: "+err.Error())
		return
	}
	if len(req.CompanyIDs) == 0 {
		badRequest(c, "company_ids must not be empty")
		return
	}
	if len(req.CompanyIDs) > MaxBatchSize {
		badRequest(c, "Too many companies in one batch (max "+strconv.Itoa(MaxBatchSize)+")")
		return
	}
	if req.MaxConcurrent < 0 {
		badRequest(c, "max_concurrent must not be negative")
		return
	}

	summary := h.scoringService.ScoreBatch(c.Request.Context(), req.CompanyIDs, req.MaxConcurrent)
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
