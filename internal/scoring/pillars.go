package scoring

import (
	"math"

	"github.com/ajharbinger/moat-scoring/internal/models"
)

// PillarLimits fixes the ceiling and display weight of one pillar.
type PillarLimits struct {
	Pillar models.Pillar
	Max    int
	Weight float64
}

var pillarLimits = map[models.Pillar]PillarLimits{
	models.PillarRegulatory: {Pillar: models.PillarRegulatory, Max: 100, Weight: 0.30},
	models.PillarNetwork:    {Pillar: models.PillarNetwork, Max: 100, Weight: 0.25},
	models.PillarLiability:  {Pillar: models.PillarLiability, Max: 75, Weight: 0.20},
	models.PillarPhysical:   {Pillar: models.PillarPhysical, Max: 60, Weight: 0.15},
	models.PillarGeographic: {Pillar: models.PillarGeographic, Max: 60, Weight: 0.10},
}

const (
	// MaxTotalScore is the sum of all pillar ceilings.
	MaxTotalScore = 395
	// MaxRiskPenalty caps the magnitude of the risk deduction.
	MaxRiskPenalty = 20
)

// LimitsOf returns the ceiling and weight for p. Unknown pillars get zero limits.
func LimitsOf(p models.Pillar) PillarLimits {
	return pillarLimits[p]
}

// MaxScore returns the ceiling for p.
func MaxScore(p models.Pillar) int {
	return pillarLimits[p].Max
}

// Weights returns a copy of the weighting scheme for recording on events.
func Weights() models.PillarWeights {
	w := make(models.PillarWeights, len(pillarLimits))
	for p, lim := range pillarLimits {
		w[p] = lim.Weight
	}
	return w
}

// WeightedContribution is for display only; it never feeds the total.
func WeightedContribution(p models.Pillar, raw int, present bool) float64 {
	if !present {
		return 0
	}
	return math.Round(float64(raw)*pillarLimits[p].Weight*100) / 100
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampPillar(p models.Pillar, v int) int {
	return clamp(v, 0, MaxScore(p))
}
