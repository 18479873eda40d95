package audiomatch

import (
	"context"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch/audio"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch/correlate"
)

// Matcher finds the candidate recording that best contains a reference clip.
type Matcher interface {
	FindBestMatch(ctx context.Context, referencePath, candidateDir string, sampleRate int) (*MatchResult, error)
}

// Loader decodes a file to a waveform at the requested sample rate.
type Loader interface {
	Load(ctx context.Context, path string, sampleRate int) (*audio.Waveform, error)
}

// Scorer computes the similarity of a candidate to a reference.
type Scorer interface {
	Score(reference, candidate []float32) (correlate.Result, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
