package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ajharbinger/moat-scoring/internal/models"
)

func TestHardSignals_Certifications(t *testing.T) {
	testCases := []struct {
		name     string
		certs    []string
		pillar   models.Pillar
		expected int
	}{
		{"AS9100", []string{"AS9100"}, models.PillarRegulatory, 20},
		{"AS9100 revision with spacing", []string{"AS 9100D"}, models.PillarRegulatory, 20},
		{"ISO 9001 with year", []string{"ISO 9001:2015"}, models.PillarRegulatory, 5},
		{"duplicate certification counts once", []string{"AS9100", "as-9100"}, models.PillarRegulatory, 20},
		{"Part 145", []string{"EASA Part 145"}, models.PillarRegulatory, 20},
		{"ISO 45001 is liability", []string{"ISO 45001"}, models.PillarLiability, 10},
		{"unknown certification", []string{"Investors in People"}, models.PillarRegulatory, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := EvaluateHardSignals(Evidence{Certifications: tc.certs})
			assert.Equal(t, tc.expected, res.Score(tc.pillar))
			assert.Equal(t, tc.expected > 0, res.Present(tc.pillar))
		})
	}
}

func TestHardSignals_ClampsAtCeiling(t *testing.T) {
	ev := Evidence{Certifications: []string{
		"AS9100", "AS9120", "NADCAP", "Part 145", "ISO 13485", "ISO 27001", "ISO 9001", "FCA",
	}}

	res := EvaluateHardSignals(ev)
	assert.Equal(t, 100, res.Score(models.PillarRegulatory))
	assert.Len(t, res.Reasons[models.PillarRegulatory], 8)
}

func TestHardSignals_Revenue(t *testing.T) {
	testCases := []struct {
		name       string
		revenue    decimal.NullDecimal
		physical   int
		geographic int
	}{
		{"absent", decimal.NullDecimal{}, 0, 0},
		{"below first threshold", decimal.NewNullDecimal(decimal.NewFromInt(9_999_999)), 0, 0},
		{"first threshold", decimal.NewNullDecimal(decimal.NewFromInt(10_000_000)), 10, 0},
		{"just below scale threshold", decimal.NewNullDecimal(decimal.RequireFromString("49999999.99")), 10, 0},
		{"scale threshold", decimal.NewNullDecimal(decimal.NewFromInt(50_000_000)), 20, 10},
		{"above scale threshold", decimal.NewNullDecimal(decimal.NewFromInt(60_000_000)), 20, 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := EvaluateHardSignals(Evidence{Revenue: tc.revenue})
			assert.Equal(t, tc.physical, res.Score(models.PillarPhysical))
			assert.Equal(t, tc.geographic, res.Score(models.PillarGeographic))
		})
	}
}

func TestHardSignals_Keywords(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		pillar   models.Pillar
		expected int
	}{
		{"platform listing", "We are an SAP Partner serving mid-market firms", models.PillarNetwork, 10},
		{"platform plus network language", "Listed on the AWS Marketplace", models.PillarNetwork, 15},
		{"mission critical", "Our flight-critical actuators", models.PillarLiability, 15},
		{"factory", "Our factory in Derby", models.PillarPhysical, 10},
		{"no substring match", "Customer feedback has been satisfactory", models.PillarPhysical, 0},
		{"exclusivity", "Sole supplier to the regional water authority", models.PillarGeographic, 15},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := EvaluateHardSignals(Evidence{WebsiteText: tc.text})
			assert.Equal(t, tc.expected, res.Score(tc.pillar))
		})
	}
}

func TestHardSignals_GraphCentrality(t *testing.T) {
	zero := 0.0
	mid := 0.3
	high := 0.7

	absent := EvaluateHardSignals(Evidence{})
	explicitZero := EvaluateHardSignals(Evidence{GraphCentrality: &zero})
	assert.Equal(t, absent, explicitZero, "absent graph signal must score like zero centrality")

	assert.Equal(t, 5, EvaluateHardSignals(Evidence{GraphCentrality: &mid}).Score(models.PillarNetwork))
	assert.Equal(t, 15, EvaluateHardSignals(Evidence{GraphCentrality: &high}).Score(models.PillarNetwork))
}

func TestHardSignals_OrderIndependent(t *testing.T) {
	employees := 400
	ev := Evidence{
		Description:    "Safety-critical sensors made in our cleanroom. Sole supplier to the MoD.",
		WebsiteText:    "A marketplace for calibration services. Factory in Leeds.",
		Certifications: []string{"AS9100", "ISO 45001", "NADCAP"},
		Revenue:        decimal.NewNullDecimal(decimal.NewFromInt(80_000_000)),
		EBITDAMargin:   decimal.NewNullDecimal(decimal.NewFromFloat(-0.02)),
		EmployeeCount:  &employees,
	}

	forward := DefaultRuleSet()
	rules := forward.Rules()
	reversed := make([]Rule, len(rules))
	for i, r := range rules {
		reversed[len(rules)-1-i] = r
	}
	backward := NewRuleSet(reversed, forward.riskRules)

	assert.Equal(t, forward.Evaluate(ev), backward.Evaluate(ev))
}

func TestHardSignals_Risk(t *testing.T) {
	res := EvaluateHardSignals(Evidence{
		WebsiteText:  "The directors have identified a material going concern uncertainty.",
		EBITDAMargin: decimal.NewNullDecimal(decimal.NewFromFloat(-0.05)),
	})
	assert.Equal(t, 20, res.RiskPoints)
	assert.Len(t, res.RiskReasons, 2)
}

func TestNormalizeCertification(t *testing.T) {
	assert.Equal(t, "AS9100D", NormalizeCertification("as 9100-d"))
	assert.Equal(t, "ISO90012015", NormalizeCertification("ISO 9001:2015"))
}
