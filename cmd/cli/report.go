package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch"
)

func printScoreLine(w io.Writer, e audiomatch.ScoreEntry) {
	fmt.Fprintf(w, "Song: %s, Correlation: %.6f\n", e.Path, e.Score)
}

func printSummary(w io.Writer, res *audiomatch.MatchResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Best Match: %s\n", res.BestMatch)
	if res.Tags != nil && res.Tags.Title != "" {
		fmt.Fprintf(w, "Track: %s\n", res.Tags)
	}
	fmt.Fprintf(w, "Correlation: %.6f\n", res.BestScore)
	if res.FiniteSpread() {
		fmt.Fprintf(w, "Spread: %.6f\n", res.Spread)
	} else {
		fmt.Fprintln(w, "Spread: inf")
	}
	fmt.Fprintf(w, "Offset: %s\n", res.BestOffset)

	if n := len(res.Failures); n > 0 {
		fmt.Fprintf(w, "Skipped: %d candidate(s)\n", n)
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %s\n", f.Error())
		}
	}
}

func printRuntime(w io.Writer, elapsed time.Duration) {
	fmt.Fprintf(w, "Total runtime: %.2f seconds\n", elapsed.Seconds())
}

func printJSON(w io.Writer, res *audiomatch.MatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
