package scoring

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ajharbinger/moat-scoring/internal/models"
)

// Rule grants Points to Pillar when Match holds. Rules never interact: the
// result is the per-pillar sum of matching rules, clamped to the ceiling, so
// evaluation order cannot change the outcome.
type Rule struct {
	ID          string
	Pillar      models.Pillar
	Points      int
	Description string
	Match       func(ev Evidence) bool
}

// RiskRule contributes to the risk penalty instead of a pillar.
type RiskRule struct {
	ID          string
	Points      int
	Description string
	Match       func(ev Evidence) bool
}

// RuleSet is an immutable collection of hard-signal rules.
type RuleSet struct {
	rules     []Rule
	riskRules []RiskRule
}

// NewRuleSet builds a rule set from explicit rules.
func NewRuleSet(rules []Rule, riskRules []RiskRule) *RuleSet {
	return &RuleSet{
		rules:     append([]Rule(nil), rules...),
		riskRules: append([]RiskRule(nil), riskRules...),
	}
}

// Rules returns a copy of the pillar rules.
func (rs *RuleSet) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}

// HardSignalResult is the clamped per-pillar outcome of a rule set.
type HardSignalResult struct {
	Scores      map[models.Pillar]int
	Reasons     map[models.Pillar][]string
	RiskPoints  int
	RiskReasons []string
	Triggered   []string
}

// Score returns the clamped hard-signal score for p.
func (r HardSignalResult) Score(p models.Pillar) int {
	return r.Scores[p]
}

// Present reports whether any rule fired for p.
func (r HardSignalResult) Present(p models.Pillar) bool {
	return len(r.Reasons[p]) > 0
}

// Justification lists the rules that fired for p.
func (r HardSignalResult) Justification(p models.Pillar) string {
	return strings.Join(r.Reasons[p], "; ")
}

// Evaluate applies every rule to ev.
func (rs *RuleSet) Evaluate(ev Evidence) HardSignalResult {
	res := HardSignalResult{
		Scores:  make(map[models.Pillar]int, len(models.AllPillars)),
		Reasons: make(map[models.Pillar][]string),
	}
	raw := make(map[models.Pillar]int, len(models.AllPillars))

	for _, rule := range rs.rules {
		if !rule.Match(ev) {
			continue
		}
		raw[rule.Pillar] += rule.Points
		res.Reasons[rule.Pillar] = append(res.Reasons[rule.Pillar], rule.Description)
		res.Triggered = append(res.Triggered, rule.ID)
	}
	for _, rule := range rs.riskRules {
		if !rule.Match(ev) {
			continue
		}
		res.RiskPoints += rule.Points
		res.RiskReasons = append(res.RiskReasons, rule.Description)
		res.Triggered = append(res.Triggered, rule.ID)
	}

	for _, p := range models.AllPillars {
		res.Scores[p] = clampPillar(p, raw[p])
		sort.Strings(res.Reasons[p])
	}
	sort.Strings(res.RiskReasons)
	sort.Strings(res.Triggered)
	return res
}

// EvaluateHardSignals runs the default rule set.
func EvaluateHardSignals(ev Evidence) HardSignalResult {
	return DefaultRuleSet().Evaluate(ev)
}

var defaultRuleSet = buildDefaultRuleSet()

// DefaultRuleSet returns the built-in rule table.
func DefaultRuleSet() *RuleSet {
	return defaultRuleSet
}

func buildDefaultRuleSet() *RuleSet {
	var rules []Rule

	rules = append(rules,
		certRule("cert_as9100", models.PillarRegulatory, 20, "AS9100 aerospace quality certification", "AS9100"),
		certRule("cert_as9120", models.PillarRegulatory, 15, "AS9120 aerospace distribution certification", "AS9120"),
		certRule("cert_nadcap", models.PillarRegulatory, 15, "NADCAP special process accreditation", "NADCAP"),
		certRule("cert_part145", models.PillarRegulatory, 20, "Part 145 maintenance organisation approval", "PART145", "EASAPART145", "FAAPART145", "EASA145", "CAAPART145"),
		certRule("cert_iso13485", models.PillarRegulatory, 20, "ISO 13485 medical device certification", "ISO13485"),
		certRule("cert_iso27001", models.PillarRegulatory, 10, "ISO 27001 information security certification", "ISO27001", "ISOIEC27001"),
		certRule("cert_iso9001", models.PillarRegulatory, 5, "ISO 9001 quality management certification", "ISO9001"),
		certRule("cert_regulator", models.PillarRegulatory, 20, "Registered with a sector regulator", "CQC", "FCA", "OFGEM", "OFWAT", "MHRA"),
		certRule("cert_iso45001", models.PillarLiability, 10, "ISO 45001 occupational safety certification", "ISO45001"),
		certRule("cert_iso14001", models.PillarLiability, 5, "ISO 14001 environmental certification", "ISO14001"),
	)

	rules = append(rules,
		Rule{
			ID: "revenue_10m", Pillar: models.PillarPhysical, Points: 10,
			Description: "Revenue of at least £10M",
			Match:       revenueAtLeast(10_000_000),
		},
		Rule{
			ID: "revenue_50m_physical", Pillar: models.PillarPhysical, Points: 10,
			Description: "Revenue of at least £50M",
			Match:       revenueAtLeast(50_000_000),
		},
		Rule{
			ID: "revenue_50m_geographic", Pillar: models.PillarGeographic, Points: 10,
			Description: "Revenue of at least £50M",
			Match:       revenueAtLeast(50_000_000),
		},
		Rule{
			ID: "employees_250", Pillar: models.PillarPhysical, Points: 10,
			Description: "At least 250 employees",
			Match: func(ev Evidence) bool {
				return ev.EmployeeCount != nil && *ev.EmployeeCount >= 250
			},
		},
		Rule{
			ID: "graph_central", Pillar: models.PillarNetwork, Points: 15,
			Description: "Highly central in the relationship graph",
			Match: func(ev Evidence) bool {
				return ev.Centrality() >= 0.5
			},
		},
		Rule{
			ID: "graph_connected", Pillar: models.PillarNetwork, Points: 5,
			Description: "Connected in the relationship graph",
			Match: func(ev Evidence) bool {
				c := ev.Centrality()
				return c >= 0.2 && c < 0.5
			},
		},
	)

	rules = append(rules, keywordRules("platform", models.PillarNetwork, 10, "Listed on platform",
		"sap partner", "salesforce appexchange", "aws marketplace", "shopify app store", "microsoft partner", "google cloud marketplace")...)
	rules = append(rules, keywordRules("network_effect", models.PillarNetwork, 5, "Network effect language",
		"marketplace", "network of", "members", "two-sided")...)
	rules = append(rules, keywordRules("mission_critical", models.PillarLiability, 15, "Failure-critical product",
		"safety-critical", "mission-critical", "life-critical", "flight-critical")...)
	rules = append(rules, keywordRules("physical_asset", models.PillarPhysical, 10, "Physical asset base",
		"manufacturing facility", "factory", "foundry", "cleanroom", "fleet of")...)
	rules = append(rules, keywordRules("exclusivity", models.PillarGeographic, 15, "Geographic exclusivity",
		"sole supplier", "exclusive licence", "exclusive license", "only licensed", "regional monopoly")...)

	riskRules := []RiskRule{
		{
			ID: "risk_negative_ebitda", Points: 10,
			Description: "Negative EBITDA margin",
			Match: func(ev Evidence) bool {
				return ev.EBITDAMargin.Valid && ev.EBITDAMargin.Decimal.IsNegative()
			},
		},
	}
	for _, kw := range []string{"going concern", "in administration", "receivership"} {
		re := keywordPattern(kw)
		riskRules = append(riskRules, RiskRule{
			ID:          "risk_distress_" + strings.ReplaceAll(kw, " ", "_"),
			Points:      10,
			Description: "Distress language: " + kw,
			Match: func(ev Evidence) bool {
				return re.MatchString(ev.Text())
			},
		})
	}

	return NewRuleSet(rules, riskRules)
}

// NormalizeCertification upper-cases a certification name and strips
// separators so "AS 9100D" and "as9100-d" compare equal.
func NormalizeCertification(cert string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(cert) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func certRule(id string, pillar models.Pillar, points int, description string, prefixes ...string) Rule {
	return Rule{
		ID:          id,
		Pillar:      pillar,
		Points:      points,
		Description: description,
		Match: func(ev Evidence) bool {
			for _, cert := range ev.Certifications {
				norm := NormalizeCertification(cert)
				for _, prefix := range prefixes {
					if strings.HasPrefix(norm, prefix) {
						return true
					}
				}
			}
			return false
		},
	}
}

func keywordRules(prefix string, pillar models.Pillar, points int, label string, keywords ...string) []Rule {
	rules := make([]Rule, 0, len(keywords))
	for _, kw := range keywords {
		re := keywordPattern(kw)
		rules = append(rules, Rule{
			ID:          prefix + "_" + strings.NewReplacer(" ", "_", "-", "_").Replace(kw),
			Pillar:      pillar,
			Points:      points,
			Description: label + ": " + kw,
			Match: func(ev Evidence) bool {
				return re.MatchString(ev.Text())
			},
		})
	}
	return rules
}

func keywordPattern(keyword string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(keyword)) + `\b`)
}

func revenueAtLeast(pounds int64) func(Evidence) bool {
	threshold := decimal.NewFromInt(pounds)
	return func(ev Evidence) bool {
		return ev.Revenue.Valid && ev.Revenue.Decimal.GreaterThanOrEqual(threshold)
	}
}
