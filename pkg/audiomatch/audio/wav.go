package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVDecoder reads integer PCM WAV files without spawning a process. It does
// not resample: files at any other rate fail with ErrRateMismatch.
type WAVDecoder struct{}

func (WAVDecoder) Decode(ctx context.Context, path string, sampleRate int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a RIFF/WAVE file", ErrUnsupportedFormat, filepath.Base(path))
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: wav audio format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit pcm", ErrUnsupportedFormat, dec.BitDepth)
	}
	if int(dec.SampleRate) != sampleRate {
		return nil, fmt.Errorf("%w: file is %d Hz, want %d Hz", ErrRateMismatch, dec.SampleRate, sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading pcm data: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("invalid pcm buffer in %s", filepath.Base(path))
	}

	scale := 1.0 / float64(int64(1)<<(dec.BitDepth-1))
	return downmix(buf.Data, buf.Format.NumChannels, scale), nil
}

// downmix averages interleaved integer frames into normalized mono samples.
func downmix(data []int, channels int, scale float64) []float32 {
	frames := len(data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		out[i] = float32(sum / float64(channels) * scale)
	}
	return out
}

// WriteMonoWAV writes samples in [-1, 1] as a 16-bit mono PCM WAV file.
func WriteMonoWAV(path string, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * 32767))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	return enc.Close()
}
