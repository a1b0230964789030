package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/repository"
	"github.com/ajharbinger/moat-scoring/internal/scoring"
)

// DefaultMaxConcurrent bounds batch fan-out when the caller gives no limit.
const DefaultMaxConcurrent = 4

// MaxBatchConcurrency is the hard ceiling on in-flight passes per batch.
const MaxBatchConcurrency = 32

// scoringServiceImpl implements ScoringService
type scoringServiceImpl struct {
	repos     *repository.Repositories
	collector EvidenceCollector
	engine    *scoring.Engine
	logger    logger.Logger
	now       func() time.Time
}

// NewScoringService creates a scoring service on top of repos.
func NewScoringService(repos *repository.Repositories, collector EvidenceCollector, engine *scoring.Engine, log logger.Logger) ScoringService {
	if log == nil {
		log = logger.NewNop()
	}
	if engine == nil {
		engine = scoring.NewEngine(nil, 0, log)
	}
	return &scoringServiceImpl{
		repos:     repos,
		collector: collector,
		engine:    engine,
		logger:    log,
		now:       time.Now,
	}
}

// ScoreCompany collects evidence, scores it, and persists the result in one
// transaction that holds the company row lock from snapshot to append.
func (s *scoringServiceImpl) ScoreCompany(ctx context.Context, companyID uuid.UUID) (*ScoreResult, error) {
	log := s.logger.With("company_id", companyID.String())

	ev, err := s.collector.Collect(ctx, companyID)
	if err != nil {
		return nil, err
	}

	out, err := s.engine.Score(ctx, ev)
	if err != nil {
		log.Error("Scoring pass failed", err)
		return nil, err
	}

	result := &ScoreResult{
		CompanyID:     companyID,
		ScoringStatus: out.Status,
		AnalysisMode:  out.Metadata.AnalysisMode,
		Degraded:      out.Degraded != nil,
	}

	err = s.repos.Tx.WithTransaction(ctx, func(tx *repository.Repositories) error {
		company, err := tx.Company.GetForUpdate(ctx, companyID)
		if err != nil {
			return err
		}
		now := s.now().UTC().Truncate(time.Microsecond)

		if !out.Scored() {
			attrs := out.Attributes
			company.ScoringStatus = models.StatusInsufficientData
			company.MoatScore = nil
			company.Tier = nil
			company.MoatAttributes = &attrs
			company.LastScoredAt = &now
			result.Attributes = &attrs
			result.ScoredAt = now
			return tx.Company.UpdateScoringState(ctx, company)
		}

		latest, err := tx.Scoring.LatestEventTime(ctx, companyID)
		if err != nil {
			return err
		}
		snapshot := scoring.SnapshotOf(company, latest != nil, latest)

		event, err := scoring.BuildEvent(snapshot, out, now)
		if err != nil {
			return err
		}

		score := out.MoatScore
		tier := out.Tier
		attrs := out.Attributes
		scoredAt := event.ScoredAt
		company.ScoringStatus = models.StatusScored
		company.MoatScore = &score
		company.Tier = &tier
		company.MoatAttributes = &attrs
		company.LastScoredAt = &scoredAt

		if err := tx.Company.UpdateScoringState(ctx, company); err != nil {
			return err
		}
		if err := tx.Scoring.AppendEvent(ctx, event); err != nil {
			return err
		}

		result.MoatScore = &score
		result.Tier = &tier
		result.Attributes = &attrs
		result.Event = event
		result.ScoredAt = scoredAt
		return nil
	})
	if err != nil {
		log.Error("Failed to persist scoring outcome", err)
		return nil, err
	}

	if result.MoatScore != nil {
		log.Info("Company scored",
			"moat_score", *result.MoatScore,
			"tier", string(*result.Tier),
			"analysis_mode", string(result.AnalysisMode),
			"trigger", string(result.Event.Trigger))
	} else {
		log.Info("Insufficient data to score company",
			"reason", result.Attributes.InsufficientReason)
	}
	return result, nil
}

// GetScoringHistory returns the company's current state and its events,
// most recent first.
func (s *scoringServiceImpl) GetScoringHistory(ctx context.Context, companyID uuid.UUID, limit int) (*ScoringHistory, error) {
	if limit < 0 {
		return nil, errors.InvalidInput("limit must not be negative", nil).WithOperation("GetScoringHistory")
	}

	company, err := s.repos.Company.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	events, err := s.repos.Scoring.ListEvents(ctx, companyID, limit)
	if err != nil {
		return nil, err
	}

	total, err := s.repos.Scoring.CountEvents(ctx, companyID)
	if err != nil {
		return nil, err
	}

	return &ScoringHistory{
		CompanyID:     company.ID,
		CurrentScore:  company.MoatScore,
		CurrentTier:   company.Tier,
		ScoringStatus: company.ScoringStatus,
		LastScoredAt:  company.LastScoredAt,
		TotalEvents:   total,
		Events:        events,
	}, nil
}

// ScoreBatch scores companies with at most maxConcurrent passes in flight.
// One company's failure never stops the others.
func (s *scoringServiceImpl) ScoreBatch(ctx context.Context, companyIDs []uuid.UUID, maxConcurrent int) BatchSummary {
	start := s.now()
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxConcurrent > MaxBatchConcurrency {
		maxConcurrent = MaxBatchConcurrency
	}

	summary := BatchSummary{Total: len(companyIDs), Failures: []BatchFailure{}}
	var mu sync.Mutex

	record := func(id uuid.UUID, res *ScoreResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			code := errors.CodeOf(err)
			if code == "" {
				code = errors.ErrCodeInternalError
			}
			summary.Failed++
			summary.Failures = append(summary.Failures, BatchFailure{
				CompanyID: id,
				Code:      code,
				Error:     err.Error(),
			})
		case res.ScoringStatus == models.StatusScored:
			summary.Scored++
			if res.Degraded {
				summary.Degraded++
			}
		default:
			summary.Insufficient++
		}
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for _, id := range companyIDs {
		id := id
		if err := ctx.Err(); err != nil {
			record(id, nil, err)
			continue
		}
		g.Go(func() error {
			res, err := s.ScoreCompany(ctx, id)
			record(id, res, err)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].CompanyID.String() < summary.Failures[j].CompanyID.String()
	})
	summary.Duration = s.now().Sub(start)

	s.logger.Info("Batch scoring completed",
		"total", summary.Total,
		"scored", summary.Scored,
		"insufficient", summary.Insufficient,
		"degraded", summary.Degraded,
		"failed", summary.Failed)
	return summary
}
