package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pillar names one dimension of competitive defensibility.
type Pillar string

const (
	PillarRegulatory Pillar = "regulatory"
	PillarNetwork    Pillar = "network"
	PillarGeographic Pillar = "geographic"
	PillarLiability  Pillar = "liability"
	PillarPhysical   Pillar = "physical"
)

// AllPillars is the fixed pillar order used for iteration and display.
var AllPillars = []Pillar{
	PillarRegulatory,
	PillarNetwork,
	PillarGeographic,
	PillarLiability,
	PillarPhysical,
}

func ParsePillar(s string) (Pillar, error) {
	for _, p := range AllPillars {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pillar %q", s)
}

// PillarResult is the merged outcome for a single pillar.
type PillarResult struct {
	Present              bool     `json:"present"`
	RawScore             int      `json:"raw_score"`
	Justification        string   `json:"justification"`
	WeightedContribution float64  `json:"weighted_contribution"`
	HardSignalScore      int      `json:"hard_signal_score"`
	ModelScore           int      `json:"model_score"`
	Sources              []string `json:"sources,omitempty"`
}

// RiskPenalty is a deduction applied after pillar scores are summed.
// Penalty is zero or negative.
type RiskPenalty struct {
	Present          bool   `json:"present"`
	Penalty          int    `json:"penalty"`
	RequestedPenalty int    `json:"requested_penalty,omitempty"`
	Justification    string `json:"justification,omitempty"`
}

// AnalysisMode records how much of the model output made it into a score.
type AnalysisMode string

const (
	AnalysisFull            AnalysisMode = "full"
	AnalysisPartial         AnalysisMode = "partial"
	AnalysisHardSignalsOnly AnalysisMode = "hard_signals_only"
)

// MoatAttributes is the per-pillar breakdown stored on the company and
// snapshotted into each scoring event.
type MoatAttributes struct {
	Pillars            map[Pillar]PillarResult `json:"pillars,omitempty"`
	Risk               RiskPenalty             `json:"risk"`
	PillarTotal        int                     `json:"pillar_total"`
	AnalysisMode       AnalysisMode            `json:"analysis_mode,omitempty"`
	InsufficientData   bool                    `json:"insufficient_data,omitempty"`
	InsufficientReason string                  `json:"insufficient_reason,omitempty"`
}

// Pillar returns the stored result for p, or the zero result when absent.
func (a *MoatAttributes) Pillar(p Pillar) PillarResult {
	if a == nil || a.Pillars == nil {
		return PillarResult{}
	}
	return a.Pillars[p]
}

// Trigger distinguishes the first successful scoring of a company from later
// passes.
type Trigger string

const (
	TriggerInitial Trigger = "initial"
	TriggerRescan  Trigger = "rescan"
)

func ParseTrigger(s string) (Trigger, error) {
	switch Trigger(s) {
	case TriggerInitial, TriggerRescan:
		return Trigger(s), nil
	default:
		return "", fmt.Errorf("unknown trigger %q", s)
	}
}

func (t Trigger) Value() (driver.Value, error) {
	if _, err := ParseTrigger(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

func (t *Trigger) Scan(value interface{}) error {
	str, err := scanString(value, "Trigger")
	if err != nil {
		return err
	}
	parsed, err := ParseTrigger(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// PillarChange is one entry of the sparse per-pillar diff.
type PillarChange struct {
	Old              int    `json:"old"`
	New              int    `json:"new"`
	Delta            int    `json:"delta"`
	OldJustification string `json:"old_justification"`
	NewJustification string `json:"new_justification"`
}

// PillarChanges holds only the pillars whose raw score moved.
type PillarChanges map[Pillar]PillarChange

// PillarWeights is the weighting scheme in force when an event was recorded.
type PillarWeights map[Pillar]float64

// EventMetadata captures how a scoring pass was produced.
type EventMetadata struct {
	AnalysisMode     AnalysisMode `json:"analysis_mode"`
	AnalyzerError    string       `json:"analyzer_error,omitempty"`
	ValidationIssues []string     `json:"validation_issues,omitempty"`
	HardSignalRules  []string     `json:"hard_signal_rules,omitempty"`
	EvidenceDigest   string       `json:"evidence_digest,omitempty"`
}

// ScoringEvent is an immutable record of one successful scoring pass.
type ScoringEvent struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	CompanyID      uuid.UUID      `json:"company_id" db:"company_id"`
	MoatScore      int            `json:"moat_score" db:"moat_score"`
	Tier           Tier           `json:"tier" db:"tier"`
	MoatAttributes MoatAttributes `json:"moat_attributes" db:"moat_attributes"`
	WeightsUsed    PillarWeights  `json:"weights_used" db:"weights_used"`
	PreviousScore  *int           `json:"previous_score" db:"previous_score"`
	ScoreDelta     *int           `json:"score_delta" db:"score_delta"`
	Changes        PillarChanges  `json:"changes" db:"changes"`
	Trigger        Trigger        `json:"trigger" db:"trigger"`
	Metadata       EventMetadata  `json:"metadata" db:"metadata"`
	ScoredAt       time.Time      `json:"scored_at" db:"scored_at"`
}

// Value implements driver.Valuer for PillarChanges
func (c PillarChanges) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[Pillar]PillarChange(c))
}

// Scan implements sql.Scanner for PillarChanges
func (c *PillarChanges) Scan(value interface{}) error {
	if value == nil {
		*c = PillarChanges{}
		return nil
	}
	return scanJSON(value, c, "PillarChanges")
}

// Value implements driver.Valuer for PillarWeights
func (w PillarWeights) Value() (driver.Value, error) {
	return json.Marshal(map[Pillar]float64(w))
}

// Scan implements sql.Scanner for PillarWeights
func (w *PillarWeights) Scan(value interface{}) error {
	if value == nil {
		*w = PillarWeights{}
		return nil
	}
	return scanJSON(value, w, "PillarWeights")
}

// Value implements driver.Valuer for EventMetadata
func (m EventMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for EventMetadata
func (m *EventMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = EventMetadata{}
		return nil
	}
	return scanJSON(value, m, "EventMetadata")
}
