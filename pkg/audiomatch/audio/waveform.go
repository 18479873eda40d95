package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSampleRate is returned when a non-positive target rate is requested.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrEmptyAudio is returned when a file decodes to zero samples.
	ErrEmptyAudio = errors.New("decoded audio is empty")
	// ErrRateMismatch is returned by decoders that cannot resample.
	ErrRateMismatch = errors.New("file sample rate differs from requested rate")
	// ErrUnsupportedFormat is returned when a decoder cannot handle the encoding.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// DecodeError reports a file that could not be turned into a waveform.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Waveform is a mono amplitude sequence captured at SampleRate.
type Waveform struct {
	Path       string
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples.
func (w *Waveform) Len() int { return len(w.Samples) }

// Duration returns the playback length of the waveform.
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Decoder turns an audio file into mono float32 samples at sampleRate.
type Decoder interface {
	Decode(ctx context.Context, path string, sampleRate int) ([]float32, error)
}

// Loader produces waveforms at a caller-chosen sample rate. Every call
// decodes from disk again.
type Loader struct {
	decoder Decoder
}

// NewLoader returns a loader backed by decoder, or by an AutoDecoder when
// decoder is nil.
func NewLoader(decoder Decoder) *Loader {
	if decoder == nil {
		decoder = NewAutoDecoder(nil)
	}
	return &Loader{decoder: decoder}
}

// Load decodes path at sampleRate. Decoder failures are wrapped in
// *DecodeError; cancellation of ctx is returned as ctx.Err().
func (l *Loader) Load(ctx context.Context, path string, sampleRate int) (*Waveform, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}

	samples, err := l.decoder.Decode(ctx, path, sampleRate)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &DecodeError{Path: path, Err: err}
	}
	if len(samples) == 0 {
		return nil, &DecodeError{Path: path, Err: ErrEmptyAudio}
	}

	return &Waveform{
		Path:       path,
		Samples:    samples,
		SampleRate: sampleRate,
	}, nil
}
