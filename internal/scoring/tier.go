package scoring

import "github.com/ajharbinger/moat-scoring/internal/models"

// Tier lower bounds, inclusive.
const (
	Tier1AThreshold = 120
	Tier1BThreshold = 70
	Tier2Threshold  = 30
)

// ClassifyTier maps a total moat score to its tier, checking the highest
// bucket first.
func ClassifyTier(total int) models.Tier {
	switch {
	case total >= Tier1AThreshold:
		return models.Tier1A
	case total >= Tier1BThreshold:
		return models.Tier1B
	case total >= Tier2Threshold:
		return models.Tier2
	default:
		return models.TierWaitlist
	}
}
