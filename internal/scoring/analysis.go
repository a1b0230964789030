package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ajharbinger/moat-scoring/internal/models"
)

// AnalysisRequest is what the model sees for one company.
type AnalysisRequest struct {
	CompanyID      uuid.UUID             `json:"company_id"`
	CompanyName    string                `json:"company_name"`
	Sector         string                `json:"sector,omitempty"`
	Country        string                `json:"country,omitempty"`
	Description    string                `json:"description,omitempty"`
	WebsiteText    string                `json:"website_text,omitempty"`
	Certifications []string              `json:"certifications,omitempty"`
	HardSignals    map[models.Pillar]int `json:"hard_signals,omitempty"`
	PillarMaxima   map[models.Pillar]int `json:"pillar_maxima"`
}

// NewAnalysisRequest builds the request from evidence and the hard-signal
// result, which is passed along as context for the model.
func NewAnalysisRequest(ev Evidence, hard HardSignalResult) AnalysisRequest {
	maxima := make(map[models.Pillar]int, len(models.AllPillars))
	for _, p := range models.AllPillars {
		maxima[p] = MaxScore(p)
	}
	return AnalysisRequest{
		CompanyID:      ev.CompanyID,
		CompanyName:    ev.Name,
		Sector:         ev.Sector,
		Country:        ev.Country,
		Description:    ev.Description,
		WebsiteText:    ev.WebsiteText,
		Certifications: ev.Certifications,
		HardSignals:    hard.Scores,
		PillarMaxima:   maxima,
	}
}

// RawAnalysis is the untrusted model payload, keyed by pillar name plus an
// optional "risk" entry.
type RawAnalysis map[string]interface{}

// PillarAnalyzer judges the pillars from free text. Implementations may fail
// or time out; the engine falls back to hard signals when they do.
type PillarAnalyzer interface {
	AnalyzePillars(ctx context.Context, req AnalysisRequest) (RawAnalysis, error)
}

// ModelJudgment is one validated pillar judgment.
type ModelJudgment struct {
	Present       bool
	Score         int
	Justification string
}

// ModelRisk is the validated risk judgment. Points is a positive magnitude.
type ModelRisk struct {
	Present       bool
	Points        int
	Justification string
}

// ValidatedAnalysis is model output after range and shape checks.
type ValidatedAnalysis struct {
	Pillars   map[models.Pillar]ModelJudgment
	Risk      ModelRisk
	Issues    []string
	Malformed int
}

// Judgment returns the validated judgment for p; absent pillars are zero.
func (v *ValidatedAnalysis) Judgment(p models.Pillar) ModelJudgment {
	if v == nil {
		return ModelJudgment{}
	}
	return v.Pillars[p]
}

// ValidateAnalysis never fails. Missing pillars default to absent, scores are
// clamped into range, and a pillar with a non-numeric score or no
// justification is discarded as absent.
func ValidateAnalysis(raw RawAnalysis) ValidatedAnalysis {
	out := ValidatedAnalysis{Pillars: make(map[models.Pillar]ModelJudgment, len(models.AllPillars))}

	source := map[string]interface{}(raw)
	if nested, ok := raw["pillars"].(map[string]interface{}); ok {
		source = nested
	}

	for _, p := range models.AllPillars {
		entry, exists := source[string(p)]
		if !exists || entry == nil {
			out.Pillars[p] = ModelJudgment{}
			out.Issues = append(out.Issues, fmt.Sprintf("%s: missing", p))
			out.Malformed++
			continue
		}
		judgment, issue := validatePillar(p, entry)
		out.Pillars[p] = judgment
		if issue != "" {
			out.Issues = append(out.Issues, fmt.Sprintf("%s: %s", p, issue))
			if isDiscard(issue) {
				out.Malformed++
			}
		}
	}

	if entry, ok := raw["risk"]; ok && entry != nil {
		risk, issue := validateRisk(entry)
		out.Risk = risk
		if issue != "" {
			out.Issues = append(out.Issues, "risk: "+issue)
		}
	}
	return out
}

const (
	issueNotObject     = "not an object"
	issueBadScore      = "non-numeric score"
	issueNoReason      = "missing justification"
	issueClampedPrefix = "score clamped"
)

func isDiscard(issue string) bool {
	return issue == issueNotObject || issue == issueBadScore || issue == issueNoReason
}

func validatePillar(p models.Pillar, entry interface{}) (ModelJudgment, string) {
	obj, ok := entry.(map[string]interface{})
	if !ok {
		return ModelJudgment{}, issueNotObject
	}
	if flag, ok := obj["present"].(bool); ok && !flag {
		justification, _ := obj["justification"].(string)
		return ModelJudgment{Justification: strings.TrimSpace(justification)}, ""
	}
	score, ok := toNumber(obj["score"])
	if !ok {
		return ModelJudgment{}, issueBadScore
	}
	justification, _ := obj["justification"].(string)
	justification = strings.TrimSpace(justification)
	if justification == "" {
		return ModelJudgment{}, issueNoReason
	}

	// Clamp before converting: huge floats do not fit in an int.
	ceiling := float64(MaxScore(p))
	clamped := int(math.Round(math.Max(0, math.Min(score, ceiling))))
	issue := ""
	if score < 0 || score > ceiling {
		issue = fmt.Sprintf("%s from %s to %d", issueClampedPrefix, strconv.FormatFloat(score, 'g', -1, 64), clamped)
	}

	present := clamped > 0
	if flag, ok := obj["present"].(bool); ok {
		present = flag
	}
	if !present {
		clamped = 0
	}
	return ModelJudgment{Present: present, Score: clamped, Justification: justification}, issue
}

func validateRisk(entry interface{}) (ModelRisk, string) {
	obj, ok := entry.(map[string]interface{})
	if !ok {
		return ModelRisk{}, issueNotObject
	}
	value := obj["penalty"]
	if value == nil {
		value = obj["score"]
	}
	penalty, ok := toNumber(value)
	if !ok {
		return ModelRisk{}, issueBadScore
	}
	points := int(math.Round(math.Min(math.Abs(penalty), MaxRiskPenalty)))
	present := points > 0
	if flag, ok := obj["present"].(bool); ok {
		present = flag
	}
	if !present {
		return ModelRisk{}, ""
	}
	justification, _ := obj["justification"].(string)
	return ModelRisk{Present: true, Points: points, Justification: strings.TrimSpace(justification)}, ""
}

func toNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
