package scoring

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
	"github.com/ajharbinger/moat-scoring/internal/logger"
	"github.com/ajharbinger/moat-scoring/internal/models"
)

// DefaultAnalyzerTimeout bounds a single analyzer call when none is configured.
const DefaultAnalyzerTimeout = 45 * time.Second

var errAnalyzerNotConfigured = stderrors.New("analyzer not configured")

// Engine turns evidence into a bounded, tiered moat score.
type Engine struct {
	rules    *RuleSet
	analyzer PillarAnalyzer
	timeout  time.Duration
	log      logger.Logger
}

// NewEngine creates an engine using the default rule set. analyzer may be nil,
// in which case every pass scores on hard signals only.
func NewEngine(analyzer PillarAnalyzer, timeout time.Duration, log logger.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultAnalyzerTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		rules:    DefaultRuleSet(),
		analyzer: analyzer,
		timeout:  timeout,
		log:      log,
	}
}

// WithRules swaps the hard-signal rule set.
func (e *Engine) WithRules(rs *RuleSet) *Engine {
	e.rules = rs
	return e
}

// Outcome is the result of one scoring pass before persistence.
type Outcome struct {
	Status     models.ScoringStatus
	MoatScore  int
	Tier       models.Tier
	Attributes models.MoatAttributes
	Metadata   models.EventMetadata
	// Degraded is set when the analyzer failed and the score is hard-signal
	// only. It is informational; the outcome is still usable.
	Degraded error
}

// Scored reports whether the pass produced a score.
func (o *Outcome) Scored() bool {
	return o.Status == models.StatusScored
}

// Score runs the gate, hard signals, the analyzer and the merge for ev.
func (e *Engine) Score(ctx context.Context, ev Evidence) (*Outcome, error) {
	gate := CheckEvidence(ev)
	if !gate.Proceed {
		return &Outcome{
			Status: models.StatusInsufficientData,
			Attributes: models.MoatAttributes{
				InsufficientData:   true,
				InsufficientReason: gate.Reason,
			},
			Metadata: models.EventMetadata{EvidenceDigest: ev.Digest()},
		}, nil
	}

	hard := e.rules.Evaluate(ev)

	analysis, mode, analyzerErr := e.analyze(ctx, ev, hard)
	if analyzerErr != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("scoring %s cancelled: %w", ev.CompanyID, ctx.Err())
	}

	attrs, total := Combine(hard, analysis)
	attrs.AnalysisMode = mode

	out := &Outcome{
		Status:     models.StatusScored,
		MoatScore:  total,
		Tier:       ClassifyTier(total),
		Attributes: attrs,
		Metadata: models.EventMetadata{
			AnalysisMode:    mode,
			HardSignalRules: hard.Triggered,
			EvidenceDigest:  ev.Digest(),
		},
	}
	if analysis != nil {
		out.Metadata.ValidationIssues = analysis.Issues
	}
	if analyzerErr != nil {
		out.Metadata.AnalyzerError = analyzerErr.Error()
		out.Degraded = apperrors.AnalyzerDegraded("analyzer unavailable, scored on hard signals only", analyzerErr).
			WithOperation("scoring.Engine.Score")
		if !stderrors.Is(analyzerErr, errAnalyzerNotConfigured) {
			e.log.Warn("analyzer degraded, falling back to hard signals",
				"company_id", ev.CompanyID.String(), "error", analyzerErr.Error())
		}
	}

	if err := CheckOutcome(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) analyze(ctx context.Context, ev Evidence, hard HardSignalResult) (*ValidatedAnalysis, models.AnalysisMode, error) {
	if e.analyzer == nil {
		return nil, models.AnalysisHardSignalsOnly, errAnalyzerNotConfigured
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.analyzer.AnalyzePillars(callCtx, NewAnalysisRequest(ev, hard))
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			err = fmt.Errorf("analyzer timed out after %s: %w", e.timeout, err)
		}
		return nil, models.AnalysisHardSignalsOnly, err
	}
	if raw == nil {
		return nil, models.AnalysisHardSignalsOnly, stderrors.New("analyzer returned an empty payload")
	}

	validated := ValidateAnalysis(raw)
	mode := models.AnalysisFull
	if validated.Malformed > 0 {
		mode = models.AnalysisPartial
		e.log.Debug("analyzer output partially discarded",
			"company_id", ev.CompanyID.String(), "issues", strings.Join(validated.Issues, "; "))
	}
	return &validated, mode, nil
}

// Combine merges hard signals with the validated model judgments. Each pillar
// takes the larger of the two sources, clamped to its ceiling; the total is
// the sum of raw scores plus the capped risk penalty, floored at zero.
func Combine(hard HardSignalResult, analysis *ValidatedAnalysis) (models.MoatAttributes, int) {
	attrs := models.MoatAttributes{Pillars: make(map[models.Pillar]models.PillarResult, len(models.AllPillars))}

	sum := 0
	for _, p := range models.AllPillars {
		hardScore := hard.Score(p)
		hardPresent := hard.Present(p)
		judgment := analysis.Judgment(p)

		raw := clampPillar(p, max(hardScore, judgment.Score))
		present := hardPresent || judgment.Present

		var sources, reasons []string
		modelFirst := judgment.Present && judgment.Score >= hardScore
		if modelFirst {
			sources = append(sources, "model")
			reasons = append(reasons, judgment.Justification)
		}
		if hardPresent {
			sources = append(sources, "hard_signal")
			reasons = append(reasons, "Hard signals: "+hard.Justification(p))
		}
		if judgment.Present && !modelFirst {
			sources = append(sources, "model")
			reasons = append(reasons, judgment.Justification)
		}

		attrs.Pillars[p] = models.PillarResult{
			Present:              present,
			RawScore:             raw,
			Justification:        strings.Join(nonEmpty(reasons), "; "),
			WeightedContribution: WeightedContribution(p, raw, present),
			HardSignalScore:      hardScore,
			ModelScore:           judgment.Score,
			Sources:              sources,
		}
		sum += raw
	}
	attrs.PillarTotal = sum
	attrs.Risk = combineRisk(hard, analysis)

	total := sum + attrs.Risk.Penalty
	if total < 0 {
		total = 0
	}
	return attrs, total
}

func combineRisk(hard HardSignalResult, analysis *ValidatedAnalysis) models.RiskPenalty {
	requested := hard.RiskPoints
	var reasons []string
	if len(hard.RiskReasons) > 0 {
		reasons = append(reasons, "Hard signals: "+strings.Join(hard.RiskReasons, "; "))
	}
	if analysis != nil && analysis.Risk.Present {
		requested = max(requested, analysis.Risk.Points)
		reasons = append(reasons, analysis.Risk.Justification)
	}
	if requested <= 0 {
		return models.RiskPenalty{}
	}
	return models.RiskPenalty{
		Present:          true,
		Penalty:          -min(requested, MaxRiskPenalty),
		RequestedPenalty: requested,
		Justification:    strings.Join(nonEmpty(reasons), "; "),
	}
}

// CheckOutcome verifies the bounds every persisted score must respect.
func CheckOutcome(out *Outcome) error {
	violation := func(format string, args ...interface{}) error {
		return apperrors.InvariantViolation(fmt.Sprintf(format, args...), nil).WithOperation("scoring.CheckOutcome")
	}

	switch out.Status {
	case models.StatusInsufficientData:
		if len(out.Attributes.Pillars) > 0 {
			return violation("insufficient outcome carries pillar scores")
		}
		return nil
	case models.StatusScored:
	default:
		return violation("unexpected outcome status %q", out.Status)
	}

	for _, p := range models.AllPillars {
		res, ok := out.Attributes.Pillars[p]
		if !ok {
			return violation("pillar %s missing from outcome", p)
		}
		if res.RawScore < 0 || res.RawScore > MaxScore(p) {
			return violation("pillar %s score %d outside [0,%d]", p, res.RawScore, MaxScore(p))
		}
		if !res.Present && res.WeightedContribution != 0 {
			return violation("absent pillar %s has a weighted contribution", p)
		}
	}
	if pen := out.Attributes.Risk.Penalty; pen > 0 || pen < -MaxRiskPenalty {
		return violation("risk penalty %d outside [-%d,0]", pen, MaxRiskPenalty)
	}
	if out.MoatScore < 0 || out.MoatScore > MaxTotalScore {
		return violation("total %d outside [0,%d]", out.MoatScore, MaxTotalScore)
	}
	if want := ClassifyTier(out.MoatScore); out.Tier != want {
		return violation("tier %s does not match score %d (want %s)", out.Tier, out.MoatScore, want)
	}
	return nil
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
