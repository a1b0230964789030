package analyzer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ajharbinger/moat-scoring/internal/scoring"
)

// HealthMonitor tracks analyzer call outcomes so degraded operation is
// visible outside individual scoring passes.
type HealthMonitor struct {
	mu                   sync.RWMutex
	totalCalls           int64
	successfulCalls      int64
	failedCalls          int64
	consecutiveFailures  int64
	lastFailureTime      time.Time
	lastSuccessTime      time.Time
	recentFailures       []FailureRecord
	maxRecentFailures    int
	failureThreshold     float64
	consecutiveThreshold int64
}

// FailureRecord is one failed analyzer call.
type FailureRecord struct {
	Timestamp time.Time `json:"timestamp"`
	CompanyID string    `json:"company_id"`
	Error     string    `json:"error"`
	Category  string    `json:"category"`
}

// HealthStatus is the reported analyzer health.
type HealthStatus struct {
	IsHealthy           bool            `json:"is_healthy"`
	Degraded            bool            `json:"degraded"`
	TotalCalls          int64           `json:"total_calls"`
	SuccessfulCalls     int64           `json:"successful_calls"`
	FailedCalls         int64           `json:"failed_calls"`
	SuccessRate         float64         `json:"success_rate"`
	ConsecutiveFailures int64           `json:"consecutive_failures"`
	LastFailureTime     *time.Time      `json:"last_failure_time,omitempty"`
	LastSuccessTime     *time.Time      `json:"last_success_time,omitempty"`
	RecentFailures      []FailureRecord `json:"recent_failures"`
	HealthIssues        []string        `json:"health_issues"`
	RecommendedActions  []string        `json:"recommended_actions"`
}

func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		maxRecentFailures:    50,
		failureThreshold:     0.2,
		consecutiveThreshold: 5,
		recentFailures:       make([]FailureRecord, 0, 50),
	}
}

// Wrap returns an analyzer that reports every call to h.
func (h *HealthMonitor) Wrap(next scoring.PillarAnalyzer) scoring.PillarAnalyzer {
	return &monitoredAnalyzer{next: next, health: h}
}

type monitoredAnalyzer struct {
	next   scoring.PillarAnalyzer
	health *HealthMonitor
}

func (m *monitoredAnalyzer) AnalyzePillars(ctx context.Context, req scoring.AnalysisRequest) (scoring.RawAnalysis, error) {
	raw, err := m.next.AnalyzePillars(ctx, req)
	if err != nil {
		m.health.RecordFailure(req.CompanyID.String(), err.Error())
		return nil, err
	}
	m.health.RecordSuccess(req.CompanyID.String())
	return raw, nil
}

func (h *HealthMonitor) RecordSuccess(companyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalCalls++
	h.successfulCalls++
	h.consecutiveFailures = 0
	h.lastSuccessTime = time.Now()
}

func (h *HealthMonitor) RecordFailure(companyID, errorMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalCalls++
	h.failedCalls++
	h.consecutiveFailures++
	h.lastFailureTime = time.Now()

	h.recentFailures = append(h.recentFailures, FailureRecord{
		Timestamp: h.lastFailureTime,
		CompanyID: companyID,
		Error:     errorMsg,
		Category:  categorizeError(errorMsg),
	})
	if len(h.recentFailures) > h.maxRecentFailures {
		h.recentFailures = h.recentFailures[1:]
	}
}

func (h *HealthMonitor) GetHealthStatus() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		TotalCalls:          h.totalCalls,
		SuccessfulCalls:     h.successfulCalls,
		FailedCalls:         h.failedCalls,
		ConsecutiveFailures: h.consecutiveFailures,
		RecentFailures:      make([]FailureRecord, len(h.recentFailures)),
		HealthIssues:        []string{},
		RecommendedActions:  []string{},
	}
	copy(status.RecentFailures, h.recentFailures)

	if h.totalCalls > 0 {
		status.SuccessRate = float64(h.successfulCalls) / float64(h.totalCalls)
	} else {
		status.SuccessRate = 1.0
	}
	if !h.lastFailureTime.IsZero() {
		t := h.lastFailureTime
		status.LastFailureTime = &t
	}
	if !h.lastSuccessTime.IsZero() {
		t := h.lastSuccessTime
		status.LastSuccessTime = &t
	}

	status.IsHealthy = true

	if h.totalCalls >= 10 && status.SuccessRate < (1.0-h.failureThreshold) {
		status.IsHealthy = false
		status.HealthIssues = append(status.HealthIssues, "High analyzer failure rate detected (>20%)")
		status.RecommendedActions = append(status.RecommendedActions,
			"Scores are falling back to hard signals; check analyzer credentials and quota")
	}
	if h.consecutiveFailures >= h.consecutiveThreshold {
		status.IsHealthy = false
		status.HealthIssues = append(status.HealthIssues, "Multiple consecutive analyzer failures detected")
		status.RecommendedActions = append(status.RecommendedActions,
			"Verify the analyzer endpoint is reachable")
	}

	h.analyzeFailurePatterns(&status)
	status.Degraded = !status.IsHealthy
	return status
}

func (h *HealthMonitor) analyzeFailurePatterns(status *HealthStatus) {
	if len(h.recentFailures) < 3 {
		return
	}

	counts := make(map[string]int)
	for _, failure := range h.recentFailures {
		counts[failure.Category]++
	}

	total := len(h.recentFailures)
	for category, count := range counts {
		if float64(count)/float64(total) <= 0.5 {
			continue
		}
		switch category {
		case "timeout":
			status.HealthIssues = append(status.HealthIssues, "Frequent analyzer timeouts detected")
			status.RecommendedActions = append(status.RecommendedActions,
				"Increase ANALYZER_TIMEOUT_SECONDS or reduce pipeline concurrency")
		case "rate_limit":
			status.HealthIssues = append(status.HealthIssues, "Analyzer rate limiting detected")
			status.RecommendedActions = append(status.RecommendedActions,
				"Reduce PIPELINE_MAX_CONCURRENT")
		case "authentication":
			status.HealthIssues = append(status.HealthIssues, "Analyzer authentication errors detected")
			status.RecommendedActions = append(status.RecommendedActions,
				"Verify ANALYZER_API_KEY")
		case "network":
			status.HealthIssues = append(status.HealthIssues, "Analyzer network errors detected")
			status.RecommendedActions = append(status.RecommendedActions,
				"Check connectivity to ANALYZER_BASE_URL")
		}
	}
}

func categorizeError(errorMsg string) string {
	errorMsg = strings.ToLower(errorMsg)

	switch {
	case strings.Contains(errorMsg, "timeout") || strings.Contains(errorMsg, "timed out") || strings.Contains(errorMsg, "deadline"):
		return "timeout"
	case strings.Contains(errorMsg, "rate limit") || strings.Contains(errorMsg, "429"):
		return "rate_limit"
	case strings.Contains(errorMsg, "unauthorized") || strings.Contains(errorMsg, "401") || strings.Contains(errorMsg, "403"):
		return "authentication"
	case strings.Contains(errorMsg, "connection") || strings.Contains(errorMsg, "dns") || strings.Contains(errorMsg, "network"):
		return "network"
	default:
		return "other"
	}
}

func (h *HealthMonitor) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalCalls = 0
	h.successfulCalls = 0
	h.failedCalls = 0
	h.consecutiveFailures = 0
	h.lastFailureTime = time.Time{}
	h.lastSuccessTime = time.Time{}
	h.recentFailures = h.recentFailures[:0]
}

func (h *HealthMonitor) IsHealthy() bool {
	return h.GetHealthStatus().IsHealthy
}

func (h *HealthMonitor) GetFailureRate() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.totalCalls == 0 {
		return 0.0
	}
	return float64(h.failedCalls) / float64(h.totalCalls)
}
