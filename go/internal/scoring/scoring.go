// Package scoring turns raw race metrics into a single ranking value.
package scoring

import (
	"math"
	"sort"

	"github.com/mcdev12/typerace/go/internal/models"
)

const (
	errorPenaltyStep  = 0.05
	accuracyFloor     = 50
	errorCeiling      = 20
	thresholdScaledBy = 0.1
)

// Score computes the leaderboard score for one run, rounded to one decimal.
func Score(wpm, accuracy, errors int) float64 {
	base := float64(wpm) * (float64(accuracy) / 100)
	base *= math.Max(0, 1-float64(errors)*errorPenaltyStep)
	if accuracy < accuracyFloor || errors > errorCeiling {
		base *= thresholdScaledBy
	}
	return math.Round(base*10) / 10
}

// Rank scores every record and orders them by score descending. Equal scores
// keep the earlier record first, then fall back to the id.
func Rank(records []models.LeaderboardRecord) []models.RankedRecord {
	ranked := make([]models.RankedRecord, len(records))
	for i, r := range records {
		ranked[i] = models.RankedRecord{
			LeaderboardRecord: r,
			Score:             Score(r.WPM, r.Accuracy, r.Errors),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
