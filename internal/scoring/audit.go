package scoring

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/models"
)

// Snapshot is the company's scoring state read immediately before it is
// overwritten. It is handed to BuildEvent explicitly.
type Snapshot struct {
	CompanyID   uuid.UUID
	MoatScore   *int
	Attributes  *models.MoatAttributes
	HasHistory  bool
	LastEventAt *time.Time
}

// SnapshotOf captures the pre-write state of c.
func SnapshotOf(c *models.Company, hasHistory bool, lastEventAt *time.Time) Snapshot {
	snap := Snapshot{
		CompanyID:   c.ID,
		HasHistory:  hasHistory,
		LastEventAt: lastEventAt,
	}
	if c.MoatScore != nil {
		score := *c.MoatScore
		snap.MoatScore = &score
	}
	if c.MoatAttributes != nil {
		attrs := *c.MoatAttributes
		snap.Attributes = &attrs
	}
	return snap
}

// BuildEvent records a scored outcome against the previous snapshot. The
// first scored pass for a company is the initial event and carries no
// previous score, delta or changes.
func BuildEvent(prev Snapshot, out *Outcome, scoredAt time.Time) (*models.ScoringEvent, error) {
	if out == nil || !out.Scored() {
		return nil, apperrors.InvariantViolation("cannot record an event for an unscored outcome", nil).
			WithOperation("scoring.BuildEvent")
	}

	scoredAt = scoredAt.UTC().Truncate(time.Microsecond)
	if prev.LastEventAt != nil && !scoredAt.After(*prev.LastEventAt) {
		scoredAt = prev.LastEventAt.UTC().Add(time.Microsecond)
	}

	event := &models.ScoringEvent{
		ID:             uuid.New(),
		CompanyID:      prev.CompanyID,
		MoatScore:      out.MoatScore,
		Tier:           out.Tier,
		MoatAttributes: out.Attributes,
		WeightsUsed:    Weights(),
		Changes:        models.PillarChanges{},
		Trigger:        models.TriggerInitial,
		Metadata:       out.Metadata,
		ScoredAt:       scoredAt,
	}
	if !prev.HasHistory {
		return event, nil
	}

	event.Trigger = models.TriggerRescan
	if prev.MoatScore != nil {
		previous := *prev.MoatScore
		delta := out.MoatScore - previous
		event.PreviousScore = &previous
		event.ScoreDelta = &delta
	}
	event.Changes = DiffPillars(prev.Attributes, &out.Attributes)
	return event, nil
}

// DiffPillars returns entries only for pillars whose raw score changed. A
// pillar missing from old is compared as zero.
func DiffPillars(old, updated *models.MoatAttributes) models.PillarChanges {
	changes := models.PillarChanges{}
	for _, p := range models.AllPillars {
		before := old.Pillar(p)
		after := updated.Pillar(p)
		if before.RawScore == after.RawScore {
			continue
		}
		changes[p] = models.PillarChange{
			Old:              before.RawScore,
			New:              after.RawScore,
			Delta:            after.RawScore - before.RawScore,
			OldJustification: before.Justification,
			NewJustification: after.Justification,
		}
	}
	return changes
}
