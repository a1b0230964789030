package repository

import "time"

// DefaultHistoryLimit caps history reads when the caller gives no limit.
const DefaultHistoryLimit = 50

// MaxHistoryLimit is the largest page ListEvents will return.
const MaxHistoryLimit = 500

// DueCriteria selects companies the pipeline should (re)score.
type DueCriteria struct {
	// ScoredBefore re-queues scored or insufficient companies whose last
	// pass is older than this instant. Zero means never-scored only.
	ScoredBefore time.Time
	Limit        int
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
