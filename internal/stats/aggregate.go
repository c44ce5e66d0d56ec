// Package stats derives learning statistics from the owned record view
package stats

import (
	"math"
	"time"

	"github.com/ppiankov/langlearn/internal/model"
)

// RecentWindow is the trailing window counted as recent activity
const RecentWindow = 7 * 24 * time.Hour

// NoBestLabel is reported when no record has a positive score
const NoBestLabel = "None"

// Aggregate computes statistics for owned records evaluated at now.
// Only ledger-backed values feed the result: the verified value when
// present, otherwise the public fallback.
func Aggregate(owned []model.Record, now time.Time) model.Stats {
	total := len(owned)
	if total == 0 {
		return model.Stats{BestLabel: NoBestLabel}
	}

	recent := countRecent(owned, now)

	return model.Stats{
		TotalCount:      total,
		AverageScore:    averageScore(owned),
		ImprovementRate: roundInt(float64(recent) / float64(total) * 100),
		BestLabel:       bestLabel(owned),
		RecentCount:     recent,
	}
}

func averageScore(owned []model.Record) int {
	var sum uint64
	for _, r := range owned {
		sum += uint64(r.BestKnown())
	}
	return roundInt(float64(sum) / float64(len(owned)))
}

func countRecent(owned []model.Record, now time.Time) int {
	count := 0
	for _, r := range owned {
		if now.Sub(r.CreatedAt) < RecentWindow {
			count++
		}
	}
	return count
}

// bestLabel picks the first record with the strictly highest score;
// ties keep the earlier record in slice order.
func bestLabel(owned []model.Record) string {
	label := NoBestLabel
	var best uint32
	for _, r := range owned {
		if v := r.BestKnown(); v > best {
			best = v
			label = r.Label
		}
	}
	return label
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
