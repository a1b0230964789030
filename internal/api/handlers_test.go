package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/moat-scoring/internal/analyzer"
	"github.com/ajharbinger/moat-scoring/internal/auth"
	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/services"
	"github.com/ajharbinger/moat-scoring/pkg/config"
)

const testSecret = "test-secret-for-handlers"

type mockScoringService struct {
	result     *services.ScoreResult
	history    *services.ScoringHistory
	err        error
	gotLimit   int
	gotIDs     []uuid.UUID
	gotMaxConc int
}

func (m *mockScoringService) ScoreCompany(ctx context.Context, id uuid.UUID) (*services.ScoreResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockScoringService) GetScoringHistory(ctx context.Context, id uuid.UUID, limit int) (*services.ScoringHistory, error) {
	m.gotLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}

func (m *mockScoringService) ScoreBatch(ctx context.Context, ids []uuid.UUID, maxConcurrent int) services.BatchSummary {
	m.gotIDs = ids
	m.gotMaxConc = maxConcurrent
	return services.BatchSummary{Total: len(ids), Scored: len(ids), Failures: []services.BatchFailure{}}
}

type mockCompanyService struct {
	created *services.CompanyDetail
	err     error
}

func (m *mockCompanyService) Create(ctx context.Context, input services.CompanyInput) (*services.CompanyDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &services.CompanyDetail{
		Company:        models.Company{ID: uuid.New(), Name: input.Name, ScoringStatus: models.StatusNotScored},
		Certifications: []models.Certification{},
	}
	return m.created, nil
}

func (m *mockCompanyService) Get(ctx context.Context, id uuid.UUID) (*services.CompanyDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &services.CompanyDetail{Company: models.Company{ID: id, Name: "Acme Precision"}}, nil
}

type mockPipeline struct {
	runs int
	err  error
}

func (m *mockPipeline) RunOnce(ctx context.Context) (*services.PipelineStats, error) {
	m.runs++
	if m.err != nil {
		return nil, m.err
	}
	return &services.PipelineStats{CompaniesFound: 2, CompaniesScored: 2}, nil
}

func (m *mockPipeline) GetStatus(ctx context.Context) (services.PipelineStatus, error) {
	return services.PipelineStatus{Schedule: "@every 60m", TotalCompanies: 3}, m.err
}

type stubDB struct{ err error }

func (s stubDB) HealthCheck() error { return s.err }

type stubAnalyzerHealth struct{}

func (stubAnalyzerHealth) GetHealthStatus() analyzer.HealthStatus {
	return analyzer.HealthStatus{IsHealthy: true, SuccessRate: 1}
}

type testServer struct {
	router   *gin.Engine
	scoring  *mockScoringService
	company  *mockCompanyService
	pipeline *mockPipeline
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		router:   gin.New(),
		scoring:  &mockScoringService{},
		company:  &mockCompanyService{},
		pipeline: &mockPipeline{},
	}
	h := &Handlers{
		Company:  NewCompanyHandler(ts.company),
		Scoring:  NewScoringHandler(ts.scoring),
		Pipeline: NewPipelineHandler(ts.pipeline),
		Health:   NewHealthHandler(stubDB{}, stubAnalyzerHealth{}),
	}
	SetupRoutes(ts.router, h, &config.Config{JWTSecret: testSecret})

	token, _, err := auth.NewJWTService(testSecret).GenerateToken("ops", "service")
	require.NoError(t, err)
	ts.token = token
	return ts
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.token)
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/"+uuid.NewString(), nil)
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp = httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestScoringHandler_ScoreCompany(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.New()
	score := 150
	tier := models.Tier1A
	ts.scoring.result = &services.ScoreResult{
		CompanyID:     id,
		ScoringStatus: models.StatusScored,
		MoatScore:     &score,
		Tier:          &tier,
		ScoredAt:      time.Now(),
	}

	resp := ts.do(http.MethodPost, "/api/v1/companies/"+id.String()+"/score", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Result services.ScoreResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, id, body.Result.CompanyID)
	require.NotNil(t, body.Result.MoatScore)
	assert.Equal(t, 150, *body.Result.MoatScore)
	assert.Equal(t, models.Tier1A, *body.Result.Tier)
}

func TestScoringHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NotFound("company not found", nil), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"invalid input", apperrors.InvalidInput("bad limit", nil), http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"database", apperrors.DatabaseError("insert failed", errors.New("pq: boom")), http.StatusInternalServerError, apperrors.ErrCodeDatabaseError},
		{"invariant", apperrors.InvariantViolation("tier mismatch", nil), http.StatusInternalServerError, apperrors.ErrCodeInvariantViolation},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.scoring.err = tt.err

			resp := ts.do(http.MethodPost, "/api/v1/companies/"+uuid.NewString()+"/score", nil)
			assert.Equal(t, tt.wantStatus, resp.Code)

			code, message := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", message)
			}
		})
	}
}

func TestScoringHandler_InvalidCompanyID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/v1/companies/not-a-uuid/score", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	code, _ := decodeError(t, resp)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, code)
}

func TestScoringHandler_GetScoringHistory(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.New()
	ts.scoring.history = &services.ScoringHistory{CompanyID: id, TotalEvents: 2, Events: []models.ScoringEvent{}}

	resp := ts.do(http.MethodGet, "/api/v1/companies/"+id.String()+"/scoring-history", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 50, ts.scoring.gotLimit)

	resp = ts.do(http.MethodGet, "/api/v1/companies/"+id.String()+"/scoring-history?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 5, ts.scoring.gotLimit)

	for _, bad := range []string{"0", "-3", "ten"} {
		resp = ts.do(http.MethodGet, "/api/v1/companies/"+id.String()+"/scoring-history?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code, "limit=%s", bad)
	}
}

func TestScoringHandler_ScoreBatch(t *testing.T) {
	ts := newTestServer(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	resp := ts.do(http.MethodPost, "/api/v1/scoring/batch", gin.H{"company_ids": ids, "max_concurrent": 3})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, ids, ts.scoring.gotIDs)
	assert.Equal(t, 3, ts.scoring.gotMaxConc)

	var body struct {
		Summary services.BatchSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Summary.Total)
}

func TestScoringHandler_ScoreBatchValidation(t *testing.T) {
	ts := newTestServer(t)

	tooMany := make([]uuid.UUID, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = uuid.New()
	}

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing ids", gin.H{}},
		{"empty ids", gin.H{"company_ids": []string{}}},
		{"malformed id", gin.H{"company_ids": []string{"nope"}}},
		{"negative concurrency", gin.H{"company_ids": []uuid.UUID{uuid.New()}, "max_concurrent": -1}},
		{"too many", gin.H{"company_ids": tooMany}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(http.MethodPost, "/api/v1/scoring/batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
		})
	}
}

func TestCompanyHandler_CreateAndGet(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/v1/companies", gin.H{
		"name":           "Acme Precision",
		"certifications": []string{"AS9100"},
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	require.NotNil(t, ts.company.created)
	assert.Equal(t, "Acme Precision", ts.company.created.Name)

	resp = ts.do(http.MethodPost, "/api/v1/companies", gin.H{"sector": "Machining"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.do(http.MethodGet, "/api/v1/companies/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	ts.company.err = apperrors.NotFound("company not found", nil)
	resp = ts.do(http.MethodGet, "/api/v1/companies/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	_, message := decodeError(t, resp)
	assert.Equal(t, "company not found", message)
}

func TestPipelineHandler(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/v1/pipeline/status", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total_companies":3`)

	resp = ts.do(http.MethodPost, "/api/v1/pipeline/run-once", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, ts.pipeline.runs)
	assert.Contains(t, resp.Body.String(), `"companies_scored":2`)

	ts.pipeline.err = errors.New("queue unavailable")
	resp = ts.do(http.MethodPost, "/api/v1/pipeline/run-once", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	h := NewHealthHandler(stubDB{err: errors.New("connection refused")}, nil)
	router.GET("/healthz", h.Healthz)
	router.GET("/analyzer", h.GetAnalyzerHealth)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), "disconnected")

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/analyzer", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"configured":false`)

	ts := newTestServer(t)
	r := ts.do(http.MethodGet, "/api/v1/analyzer/health", nil)
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Contains(t, r.Body.String(), `"is_healthy":true`)
}
