package analytics

import (
	"github.com/divijg19/lakecross/internal/core"
)

// Aggregate reduces records into a summary. optimalCrossings is the minimum solution length
// for the rules the sessions were played under; a completed win of exactly that length
// counts as optimal.
func Aggregate(records []core.SessionRecord, optimalCrossings int) core.AnalyticsSummary {
	sum := core.AnalyticsSummary{
		TotalGames:       len(records),
		MistakeFrequency: map[core.Mistake]int{},
	}
	var movesInWins int
	var totalDuration float64
	for _, r := range records {
		sum.TotalMovesMade += len(r.Moves)
		for _, m := range r.Mistakes {
			sum.MistakeFrequency[m]++
		}

		if r.Status != core.StatusCompleted {
			sum.ActiveGames++
			continue
		}
		sum.CompletedGames++
		if r.DurationSeconds != nil {
			totalDuration += *r.DurationSeconds
		}
		if !r.Won {
			continue
		}
		sum.Wins++
		movesInWins += r.MoveCount
		if optimalCrossings > 0 && r.MoveCount == optimalCrossings {
			sum.OptimalSolutionCount++
		}
	}

	if sum.Wins > 0 {
		sum.AverageMovesPerWin = float64(movesInWins) / float64(sum.Wins)
	}
	if sum.CompletedGames > 0 {
		sum.SuccessRatePercent = 100 * float64(sum.Wins) / float64(sum.CompletedGames)
		sum.AverageDurationSeconds = totalDuration / float64(sum.CompletedGames)
	}
	return sum
}
