package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultDecodeTimeout bounds a single ffmpeg run when the caller's context
// has no deadline.
const DefaultDecodeTimeout = 2 * time.Minute

// FFmpegDecoder decodes any format ffmpeg understands, downmixing to mono and
// resampling to the requested rate as part of the same invocation.
type FFmpegDecoder struct {
	Binary  string        // e.g. "ffmpeg" or an absolute path
	Timeout time.Duration // 0 means DefaultDecodeTimeout
}

func (d *FFmpegDecoder) binary() string {
	if d == nil || d.Binary == "" {
		return "ffmpeg"
	}
	return d.Binary
}

func (d *FFmpegDecoder) timeout() time.Duration {
	if d == nil || d.Timeout <= 0 {
		return DefaultDecodeTimeout
	}
	return d.Timeout
}

// Decode runs ffmpeg and reads raw little-endian float32 PCM from its stdout.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string, sampleRate int) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout())
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		d.binary(),
		"-hide_banner",
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", "1", // mono
		"-ar", strconv.Itoa(sampleRate),
		"-f", "f32le",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed on %s: %v (%s)", filepath.Base(path), err, strings.TrimSpace(stderr.String()))
	}

	return parseFloat32LE(stdout.Bytes())
}

// parseFloat32LE converts packed little-endian IEEE-754 floats to samples.
func parseFloat32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, errors.New("unexpected byte length for f32le stream")
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, nil
}

// FFmpegAvailable reports whether binary can be found on PATH.
func FFmpegAvailable(binary string) bool {
	if binary == "" {
		binary = "ffmpeg"
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// AutoDecoder reads WAV files natively when they are already at the
// requested rate and hands everything else to ffmpeg.
type AutoDecoder struct {
	WAV    Decoder
	FFmpeg Decoder
}

// NewAutoDecoder returns an AutoDecoder using ff for the fallback path, or a
// default FFmpegDecoder when ff is nil.
func NewAutoDecoder(ff Decoder) *AutoDecoder {
	if ff == nil {
		ff = &FFmpegDecoder{}
	}
	return &AutoDecoder{WAV: WAVDecoder{}, FFmpeg: ff}
}

func (d *AutoDecoder) Decode(ctx context.Context, path string, sampleRate int) ([]float32, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return d.FFmpeg.Decode(ctx, path, sampleRate)
	}

	samples, err := d.WAV.Decode(ctx, path, sampleRate)
	if err == nil {
		return samples, nil
	}
	if !errors.Is(err, ErrRateMismatch) && !errors.Is(err, ErrUnsupportedFormat) {
		return nil, err
	}

	samples, ffErr := d.FFmpeg.Decode(ctx, path, sampleRate)
	if ffErr != nil {
		return nil, fmt.Errorf("native wav: %v; ffmpeg fallback: %w", err, ffErr)
	}
	return samples, nil
}
