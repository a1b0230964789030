package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/scoring"
)

type memoryStore struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	lastTTL time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.lastTTL = ttl
	return nil
}

type countingAnalyzer struct {
	calls int
	raw   scoring.RawAnalysis
	err   error
}

func (c *countingAnalyzer) AnalyzePillars(ctx context.Context, req scoring.AnalysisRequest) (scoring.RawAnalysis, error) {
	c.calls++
	return c.raw, c.err
}

func sampleRequest() scoring.AnalysisRequest {
	return scoring.AnalysisRequest{
		CompanyID:   uuid.New(),
		CompanyName: "Acme",
		WebsiteText: "We operate a cleanroom.",
		HardSignals: map[models.Pillar]int{models.PillarPhysical: 10},
	}
}

func TestCachingAnalyzer_HitSkipsUpstream(t *testing.T) {
	upstream := &countingAnalyzer{raw: scoring.RawAnalysis{
		"physical": map[string]interface{}{"present": true, "score": json.Number("30"), "justification": "Cleanroom"},
	}}
	store := newMemoryStore()
	cache := NewCachingAnalyzer(upstream, store, time.Hour, logger.NewNop())
	req := sampleRequest()

	first, err := cache.AnalyzePillars(context.Background(), req)
	require.NoError(t, err)
	second, err := cache.AnalyzePillars(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, time.Hour, store.lastTTL)
	firstValidated := scoring.ValidateAnalysis(first)
	secondValidated := scoring.ValidateAnalysis(second)
	assert.Equal(t,
		firstValidated.Judgment(models.PillarPhysical),
		secondValidated.Judgment(models.PillarPhysical))
}

func TestCachingAnalyzer_DifferentEvidenceMisses(t *testing.T) {
	upstream := &countingAnalyzer{raw: scoring.RawAnalysis{}}
	cache := NewCachingAnalyzer(upstream, newMemoryStore(), time.Hour, nil)

	req := sampleRequest()
	_, err := cache.AnalyzePillars(context.Background(), req)
	require.NoError(t, err)

	req.WebsiteText = "We operate two cleanrooms."
	_, err = cache.AnalyzePillars(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, upstream.calls)
}

func TestCachingAnalyzer_StoreFailuresAreIgnored(t *testing.T) {
	upstream := &countingAnalyzer{raw: scoring.RawAnalysis{"risk": map[string]interface{}{"present": false}}}
	store := newMemoryStore()
	store.getErr = errors.New("redis down")
	store.setErr = errors.New("redis down")

	raw, err := NewCachingAnalyzer(upstream, store, time.Hour, nil).AnalyzePillars(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.NotNil(t, raw)
	assert.Equal(t, 1, upstream.calls)
}

func TestCachingAnalyzer_UpstreamErrorNotCached(t *testing.T) {
	upstream := &countingAnalyzer{err: errors.New("status 503")}
	store := newMemoryStore()

	_, err := NewCachingAnalyzer(upstream, store, time.Hour, nil).AnalyzePillars(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Empty(t, store.data)
}

func TestCacheKey_StableAndPrefixed(t *testing.T) {
	req := sampleRequest()
	a, err := CacheKey(req)
	require.NoError(t, err)
	b, err := CacheKey(req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Contains(t, a, cacheKeyPrefix)

	req.CompanyID = uuid.New()
	c, err := CacheKey(req)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
