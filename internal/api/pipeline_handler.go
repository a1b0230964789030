package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/moat-scoring/internal/services"
)

// PipelineController is the part of the scoring pipeline the API drives.
type PipelineController interface {
	RunOnce(ctx context.Context) (*services.PipelineStats, error)
	GetStatus(ctx context.Context) (services.PipelineStatus, error)
}

// PipelineHandler handles scoring pipeline management operations
type PipelineHandler struct {
	pipeline PipelineController
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(pipeline PipelineController) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline}
}

// GetPipelineStatus returns the current status of the scoring pipeline
func (h *PipelineHandler) GetPipelineStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := h.pipeline.GetStatus(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pipeline_status": status,
		"timestamp":       time.Now(),
	})
}

// RunOnce executes a single scoring cycle and waits for it to finish
func (h *PipelineHandler) RunOnce(c *gin.Context) {
	stats, err := h.pipeline.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scoring cycle completed",
		"stats":   stats,
	})
}
