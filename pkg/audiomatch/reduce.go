package audiomatch

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary is the reduction of a set of score entries.
type Summary struct {
	Best   ScoreEntry
	Spread float64
	Ranked []ScoreEntry // score desc, path asc
}

// Reduce picks the best entry and its spread under policy. For
// SpreadRunning, entries must be in arrival order; SpreadRunnerUp ignores
// the order entirely.
func Reduce(entries []ScoreEntry, policy SpreadPolicy) (Summary, error) {
	if len(entries) == 0 {
		return Summary{}, ErrNoScores
	}

	ranked := make([]ScoreEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Path < ranked[j].Path
	})

	if policy == SpreadRunning {
		best, spread := runningBest(entries)
		return Summary{Best: best, Spread: spread, Ranked: ranked}, nil
	}

	spread := math.Inf(1)
	if len(ranked) > 1 {
		spread = ranked[0].Score - ranked[1].Score
	}
	return Summary{Best: ranked[0], Spread: spread, Ranked: ranked}, nil
}

// runningBest replays the arrival-order update rule: on every strict
// improvement spread becomes score minus the previous best. The previous best
// starts at -Inf, so a best that arrived first leaves spread at +Inf.
func runningBest(entries []ScoreEntry) (ScoreEntry, float64) {
	bestScore := math.Inf(-1)
	spread := math.NaN()
	var best ScoreEntry
	for _, e := range entries {
		if e.Score > bestScore {
			spread = e.Score - bestScore
			bestScore = e.Score
			best = e
		}
	}
	return best, spread
}

// scoreStats describes the score distribution and how far the best score
// stands out from it.
func scoreStats(ranked []ScoreEntry) ScoreStats {
	st := ScoreStats{Count: len(ranked)}
	if len(ranked) == 0 {
		return st
	}

	xs := make([]float64, len(ranked))
	for i, e := range ranked {
		xs[i] = e.Score
	}
	st.Mean = stat.Mean(xs, nil)
	if len(xs) < 2 {
		return st
	}
	st.StdDev = stat.StdDev(xs, nil)
	if st.StdDev > 0 && !math.IsNaN(st.StdDev) {
		st.ZScore = (ranked[0].Score - st.Mean) / st.StdDev
	}
	return st
}
