// Package correlate scores how well a reference clip lines up with a longer
// recording using valid-mode cross-correlation.
//
// For a reference r of length m and a candidate c of length n >= m the valid
// region is
//
//	z[k] = Σ_{i=0}^{m-1} c[k+i] · r[i],  k = 0 … n−m
//
// and the score is max_k z[k]. Both inputs must be at the same sample rate.
package correlate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Method selects the correlation algorithm.
type Method int

const (
	// Auto picks Direct for small problems and FFT otherwise.
	Auto Method = iota
	// Direct evaluates every lag with a dot product.
	Direct
	// FFT computes all lags at once in the frequency domain.
	FFT
)

func (m Method) String() string {
	switch m {
	case Auto:
		return "auto"
	case Direct:
		return "direct"
	case FFT:
		return "fft"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps "auto", "direct" or "fft" to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "direct":
		return Direct, nil
	case "fft":
		return FFT, nil
	default:
		return Auto, fmt.Errorf("unknown correlation method %q", s)
	}
}

// DirectCostLimit is the m·(n−m+1) multiply count above which Auto switches
// to the FFT path.
const DirectCostLimit = 1 << 22

// ErrEmptyReference is returned when the reference has no samples.
var ErrEmptyReference = errors.New("reference waveform is empty")

// InsufficientLengthError reports a reference that does not fit inside the
// candidate, which leaves the valid region empty.
type InsufficientLengthError struct {
	ReferenceLen int
	CandidateLen int
}

func (e *InsufficientLengthError) Error() string {
	return fmt.Sprintf("reference (%d samples) is longer than candidate (%d samples)", e.ReferenceLen, e.CandidateLen)
}

// Result is the best alignment of a reference within a candidate.
type Result struct {
	Score float64 // maximum of the valid-mode correlation
	Lag   int     // candidate sample index where the reference starts
}

// Scorer computes similarity scores. The zero value uses Auto.
type Scorer struct {
	Method Method
}

// Score returns the maximum valid-mode correlation of candidate against
// reference and the smallest lag that reaches it.
func (s Scorer) Score(reference, candidate []float32) (Result, error) {
	z, err := s.Valid(reference, candidate)
	if err != nil {
		return Result{}, err
	}
	lag := floats.MaxIdx(z)
	return Result{Score: z[lag], Lag: lag}, nil
}

// Valid returns the whole valid-mode correlation sequence, one value per lag.
func (s Scorer) Valid(reference, candidate []float32) ([]float64, error) {
	m, n := len(reference), len(candidate)
	if m == 0 {
		return nil, ErrEmptyReference
	}
	if m > n {
		return nil, &InsufficientLengthError{ReferenceLen: m, CandidateLen: n}
	}

	ref := widen(reference)
	cand := widen(candidate)

	switch s.pick(m, n) {
	case FFT:
		return validFFT(ref, cand), nil
	default:
		return validDirect(ref, cand), nil
	}
}

func (s Scorer) pick(m, n int) Method {
	if s.Method != Auto {
		return s.Method
	}
	if m*(n-m+1) > DirectCostLimit {
		return FFT
	}
	return Direct
}

// Score is shorthand for Scorer{}.Score.
func Score(reference, candidate []float32) (Result, error) {
	return Scorer{}.Score(reference, candidate)
}

func validDirect(ref, cand []float64) []float64 {
	m := len(ref)
	z := make([]float64, len(cand)-m+1)
	for k := range z {
		z[k] = floats.Dot(cand[k:k+m], ref)
	}
	return z
}

func widen(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}
