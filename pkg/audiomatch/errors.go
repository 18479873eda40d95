package audiomatch

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch/audio"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch/correlate"
)

// DecodeError and InsufficientLengthError are re-exported so callers only
// need this package to classify failures.
type (
	DecodeError             = audio.DecodeError
	InsufficientLengthError = correlate.InsufficientLengthError
)

var (
	// ErrInvalidSampleRate is returned for a non-positive sample rate.
	ErrInvalidSampleRate = audio.ErrInvalidSampleRate
	// ErrNoScores is returned when every candidate was excluded.
	ErrNoScores = errors.New("no candidate produced a score")
)

// NoCandidatesError reports a directory with no accepted audio files.
type NoCandidatesError struct {
	Dir        string
	Extensions []string
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("no candidate audio files %v in %s", e.Extensions, e.Dir)
}

// ReferenceError wraps a failure to load the reference clip.
type ReferenceError struct {
	Path string
	Err  error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("loading reference %s: %v", e.Path, e.Err)
}

func (e *ReferenceError) Unwrap() error { return e.Err }
