package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ajharbinger/moat-scoring/internal/models"
	"github.com/ajharbinger/moat-scoring/internal/scoring"
)

const (
	schemaName = "moat_pillars"
	// maxWebsiteChars keeps prompts within a predictable token budget.
	maxWebsiteChars = 12000
)

const systemPrompt = `You assess the competitive moat of private companies for an investment thesis.
Judge five pillars from the evidence only:
- regulatory: licences, certifications, approvals that block new entrants
- network: platform or marketplace effects, ecosystem lock-in
- geographic: exclusive territory, local monopoly, hard-to-replicate footprint
- liability: customers cannot risk switching because failure is costly or dangerous
- physical: capital-intensive assets, plants, fleets, specialised facilities
For each pillar return present, an integer score between 0 and the stated maximum, and a one-sentence justification citing the evidence.
Return a risk entry whose penalty is a non-negative integer for material risks (distress, concentration, litigation), 0 if none.
Do not invent facts. If there is no evidence for a pillar, set present to false and score to 0.`

// LLMAnalyzer asks a JSON-generating model to judge the pillars.
type LLMAnalyzer struct {
	gen JSONGenerator
}

func NewLLMAnalyzer(gen JSONGenerator) *LLMAnalyzer {
	return &LLMAnalyzer{gen: gen}
}

func (a *LLMAnalyzer) AnalyzePillars(ctx context.Context, req scoring.AnalysisRequest) (scoring.RawAnalysis, error) {
	out, err := a.gen.GenerateJSON(ctx, systemPrompt, BuildUserPrompt(req), schemaName, PillarSchema())
	if err != nil {
		return nil, fmt.Errorf("analyze pillars for %s: %w", req.CompanyID, err)
	}
	return scoring.RawAnalysis(out), nil
}

// BuildUserPrompt renders the company evidence for the model.
func BuildUserPrompt(req scoring.AnalysisRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", req.CompanyName)
	if req.Sector != "" {
		fmt.Fprintf(&b, "Sector: %s\n", req.Sector)
	}
	if req.Country != "" {
		fmt.Fprintf(&b, "Country: %s\n", req.Country)
	}
	if len(req.Certifications) > 0 {
		certs := append([]string(nil), req.Certifications...)
		sort.Strings(certs)
		fmt.Fprintf(&b, "Certifications: %s\n", strings.Join(certs, ", "))
	}

	b.WriteString("\nPillar maxima:\n")
	for _, p := range models.AllPillars {
		fmt.Fprintf(&b, "- %s: %d\n", p, req.PillarMaxima[p])
	}
	if len(req.HardSignals) > 0 {
		b.WriteString("\nRule-based signals already found (points):\n")
		for _, p := range models.AllPillars {
			if pts := req.HardSignals[p]; pts > 0 {
				fmt.Fprintf(&b, "- %s: %d\n", p, pts)
			}
		}
	}

	if req.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", req.Description)
	}
	if req.WebsiteText != "" {
		text := req.WebsiteText
		if len(text) > maxWebsiteChars {
			text = strings.ToValidUTF8(text[:maxWebsiteChars], "")
		}
		fmt.Fprintf(&b, "\nWebsite text:\n%s\n", text)
	}
	return b.String()
}

// PillarSchema is the strict JSON schema the model must follow.
func PillarSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(models.AllPillars)+1)
	required := make([]string, 0, len(models.AllPillars)+1)
	for _, p := range models.AllPillars {
		properties[string(p)] = map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"present":       map[string]interface{}{"type": "boolean"},
				"score":         map[string]interface{}{"type": "integer"},
				"justification": map[string]interface{}{"type": "string"},
			},
			"required":             []string{"present", "score", "justification"},
			"additionalProperties": false,
		}
		required = append(required, string(p))
	}
	properties["risk"] = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"present":       map[string]interface{}{"type": "boolean"},
			"penalty":       map[string]interface{}{"type": "integer"},
			"justification": map[string]interface{}{"type": "string"},
		},
		"required":             []string{"present", "penalty", "justification"},
		"additionalProperties": false,
	}
	required = append(required, "risk")

	return map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}
