package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/moat-scoring/internal/analyzer"
)

// DatabaseChecker reports whether the database is reachable.
type DatabaseChecker interface {
	HealthCheck() error
}

// AnalyzerHealth reports the analyzer's recent call health.
type AnalyzerHealth interface {
	GetHealthStatus() analyzer.HealthStatus
}

// HealthHandler serves liveness and analyzer health
type HealthHandler struct {
	db       DatabaseChecker
	analyzer AnalyzerHealth
}

// NewHealthHandler creates a health handler. analyzerHealth may be nil when
// no analyzer is configured.
func NewHealthHandler(db DatabaseChecker, analyzerHealth AnalyzerHealth) *HealthHandler {
	return &HealthHandler{db: db, analyzer: analyzerHealth}
}

// Healthz reports service and database health
func (h *HealthHandler) Healthz(c *gin.Context) {
	response := gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	}

	if h.db != nil {
		if err := h.db.HealthCheck(); err != nil {
			response["status"] = "unhealthy"
			response["database"] = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response["database"] = "connected"
	}

	c.JSON(http.StatusOK, response)
}

// GetAnalyzerHealth returns the analyzer health monitor's view
func (h *HealthHandler) GetAnalyzerHealth(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusOK, gin.H{
			"configured": false,
			"timestamp":  time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"configured":    true,
		"health_status": h.analyzer.GetHealthStatus(),
		"timestamp":     time.Now(),
	})
}
