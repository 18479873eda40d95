package audiomatch

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch/audio"
)

// ScoreEntry is the similarity of one candidate to the reference.
type ScoreEntry struct {
	Path   string        `json:"path"`
	Score  float64       `json:"score"`
	Lag    int           `json:"lag"`    // sample offset of the best alignment
	Offset time.Duration `json:"offset"` // Lag expressed as time
}

// CandidateFailure is a candidate excluded from aggregation.
type CandidateFailure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (f CandidateFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

func (f CandidateFailure) Unwrap() error { return f.Err }

func (f CandidateFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}{f.Path, msg})
}

// ScoreStats summarises the distribution of candidate scores.
type ScoreStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	ZScore float64 `json:"z_score"` // (best - mean) / stddev, 0 when undefined
}

// MatchResult is the outcome of one matching run.
type MatchResult struct {
	RunID      string             `json:"run_id"`
	Reference  string             `json:"reference"`
	SampleRate int                `json:"sample_rate"`
	BestMatch  string             `json:"best_match"`
	BestScore  float64            `json:"best_score"`
	BestOffset time.Duration      `json:"best_offset"`
	Spread     float64            `json:"spread"` // +Inf when only one candidate scored
	Policy     SpreadPolicy       `json:"spread_policy"`
	Scores     []ScoreEntry       `json:"scores"` // score desc, path asc
	Failures   []CandidateFailure `json:"failures,omitempty"`
	Stats      ScoreStats         `json:"stats"`
	Tags       *audio.Tags        `json:"tags,omitempty"`
	Elapsed    time.Duration      `json:"elapsed"`
}

// MarshalJSON encodes an infinite spread as null.
func (r MatchResult) MarshalJSON() ([]byte, error) {
	type plain MatchResult
	var spread *float64
	if !math.IsInf(r.Spread, 0) && !math.IsNaN(r.Spread) {
		s := r.Spread
		spread = &s
	}
	return json.Marshal(struct {
		plain
		Spread *float64 `json:"spread"`
	}{plain(r), spread})
}

// FiniteSpread reports whether Spread is a usable margin. It is false when
// the best match was also the first score the reducer saw.
func (r *MatchResult) FiniteSpread() bool {
	return !math.IsInf(r.Spread, 0) && !math.IsNaN(r.Spread)
}

// SpreadPolicy selects how the confidence margin is computed.
type SpreadPolicy int

const (
	// SpreadRunnerUp is best minus second-best over all scores. It does not
	// depend on completion order.
	SpreadRunnerUp SpreadPolicy = iota
	// SpreadRunning is the improvement of the last running-best update in
	// arrival order. Two runs over the same files can disagree.
	SpreadRunning
)

func (p SpreadPolicy) String() string {
	switch p {
	case SpreadRunnerUp:
		return "runner-up"
	case SpreadRunning:
		return "running"
	default:
		return fmt.Sprintf("SpreadPolicy(%d)", int(p))
	}
}

func (p SpreadPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParseSpreadPolicy maps "runner-up" or "running" to a SpreadPolicy.
func ParseSpreadPolicy(s string) (SpreadPolicy, error) {
	switch s {
	case "", "runner-up":
		return SpreadRunnerUp, nil
	case "running":
		return SpreadRunning, nil
	default:
		return SpreadRunnerUp, fmt.Errorf("unknown spread policy %q", s)
	}
}

// FailurePolicy selects what a candidate decode failure does to the run.
type FailurePolicy int

const (
	// IsolateFailures excludes the failing candidate and carries on.
	IsolateFailures FailurePolicy = iota
	// AbortOnFailure stops the run at the first candidate decode failure.
	AbortOnFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case IsolateFailures:
		return "isolate"
	case AbortOnFailure:
		return "abort"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}
