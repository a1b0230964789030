package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/models"
)

// scoringRepository implements ScoringRepository over the scoring_events table.
// Rows are only ever inserted; a database trigger rejects UPDATE and DELETE.
type scoringRepository struct {
	db dbExecutor
}

// NewScoringRepository creates a new scoring repository
func NewScoringRepository(db dbExecutor) ScoringRepository {
	return &scoringRepository{db: db}
}

// AppendEvent inserts an immutable scoring event
func (r *scoringRepository) AppendEvent(ctx context.Context, event *models.ScoringEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	query := `
		INSERT INTO scoring_events (
			id, company_id, moat_score, tier, moat_attributes, weights_used,
			previous_score, score_delta, changes, trigger, metadata, scored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.CompanyID, event.MoatScore, event.Tier, event.MoatAttributes,
		event.WeightsUsed, nullableInt(event.PreviousScore), nullableInt(event.ScoreDelta),
		event.Changes, event.Trigger, event.Metadata, event.ScoredAt.UTC(),
	)
	if err != nil {
		return apperrors.DatabaseError("failed to append scoring event", err).
			WithOperation("repository.Scoring.AppendEvent")
	}
	return nil
}

// ListEvents returns a company's events, most recent first
func (r *scoringRepository) ListEvents(ctx context.Context, companyID uuid.UUID, limit int) ([]models.ScoringEvent, error) {
	query := `
		SELECT id, company_id, moat_score, tier, moat_attributes, weights_used,
			   previous_score, score_delta, changes, trigger, metadata, scored_at
		FROM scoring_events
		WHERE company_id = $1
		ORDER BY scored_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, companyID, normalizeLimit(limit))
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list scoring events", err).
			WithOperation("repository.Scoring.ListEvents")
	}
	defer rows.Close()

	events := []models.ScoringEvent{}
	for rows.Next() {
		var (
			event    models.ScoringEvent
			previous sql.NullInt64
			delta    sql.NullInt64
		)
		err := rows.Scan(
			&event.ID, &event.CompanyID, &event.MoatScore, &event.Tier, &event.MoatAttributes,
			&event.WeightsUsed, &previous, &delta, &event.Changes, &event.Trigger,
			&event.Metadata, &event.ScoredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scoring event: %w", err)
		}
		if previous.Valid {
			n := int(previous.Int64)
			event.PreviousScore = &n
		}
		if delta.Valid {
			n := int(delta.Int64)
			event.ScoreDelta = &n
		}
		event.ScoredAt = event.ScoredAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scoring events: %w", err)
	}
	return events, nil
}

// CountEvents returns the total number of events for a company
func (r *scoringRepository) CountEvents(ctx context.Context, companyID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scoring_events WHERE company_id = $1`, companyID).Scan(&count)
	if err != nil {
		return 0, apperrors.DatabaseError("failed to count scoring events", err).
			WithOperation("repository.Scoring.CountEvents")
	}
	return count, nil
}

// LatestEventTime returns the scored_at of the newest event, or nil
func (r *scoringRepository) LatestEventTime(ctx context.Context, companyID uuid.UUID) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT MAX(scored_at) FROM scoring_events WHERE company_id = $1`, companyID).Scan(&latest)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to read latest scoring event", err).
			WithOperation("repository.Scoring.LatestEventTime")
	}
	if !latest.Valid {
		return nil, nil
	}
	t := latest.Time.UTC()
	return &t, nil
}
