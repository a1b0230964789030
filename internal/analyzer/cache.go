package analyzer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/scoring"
)

const cacheKeyPrefix = "moat:analysis:"

// ErrCacheMiss is returned by a Store when no entry exists.
var ErrCacheMiss = stderrors.New("analysis cache miss")

// Store is the minimal key/value surface the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore parses redisURL and verifies connectivity.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Client exposes the underlying connection so other components can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.rdb
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// CachingAnalyzer memoises analyzer output by request digest so unchanged
// evidence yields the same judgments across rescans. Cache failures are
// logged and never fail the analysis.
type CachingAnalyzer struct {
	next  scoring.PillarAnalyzer
	store Store
	ttl   time.Duration
	log   logger.Logger
}

func NewCachingAnalyzer(next scoring.PillarAnalyzer, store Store, ttl time.Duration, log logger.Logger) *CachingAnalyzer {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachingAnalyzer{next: next, store: store, ttl: ttl, log: log}
}

func (c *CachingAnalyzer) AnalyzePillars(ctx context.Context, req scoring.AnalysisRequest) (scoring.RawAnalysis, error) {
	key, err := CacheKey(req)
	if err != nil {
		return c.next.AnalyzePillars(ctx, req)
	}

	cached, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		raw, decodeErr := decodeRaw(cached)
		if decodeErr == nil {
			c.log.Debug("analysis cache hit", "company_id", req.CompanyID.String())
			return raw, nil
		}
		c.log.Warn("discarding unreadable cached analysis", "key", key, "error", decodeErr.Error())
	case !stderrors.Is(err, ErrCacheMiss):
		c.log.Warn("analysis cache read failed", "key", key, "error", err.Error())
	}

	raw, err := c.next.AnalyzePillars(ctx, req)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(raw)
	if err == nil {
		err = c.store.Set(ctx, key, string(encoded), c.ttl)
	}
	if err != nil {
		c.log.Warn("analysis cache write failed", "key", key, "error", err.Error())
	}
	return raw, nil
}

// CacheKey digests every request field the model can see. The company id is
// included so two companies never share judgments.
func CacheKey(req scoring.AnalysisRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(payload)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}

func decodeRaw(s string) (scoring.RawAnalysis, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw scoring.RawAnalysis
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, stderrors.New("cached analysis is null")
	}
	return raw, nil
}
