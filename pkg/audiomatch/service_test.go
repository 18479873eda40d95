package audiomatch

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch/audio"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch/correlate"
	"github.com/himanishpuri/audiomatch/pkg/logger"
)

const testRate = 2000

type fakeWave struct {
	samples []float32
	err     error
	delay   time.Duration
}

// fakeLoader serves waveforms keyed by base file name.
type fakeLoader struct {
	waves map[string]fakeWave
	calls atomic.Int32
}

func (f *fakeLoader) Load(ctx context.Context, path string, sampleRate int) (*audio.Waveform, error) {
	f.calls.Add(1)
	w, ok := f.waves[filepath.Base(path)]
	if !ok {
		return nil, &DecodeError{Path: path, Err: os.ErrNotExist}
	}
	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.err != nil {
		return nil, w.err
	}
	return &audio.Waveform{Path: path, Samples: w.samples, SampleRate: sampleRate}, nil
}

type scorerFunc func(ref, cand []float32) (correlate.Result, error)

func (f scorerFunc) Score(ref, cand []float32) (correlate.Result, error) { return f(ref, cand) }

func noise(rng *rand.Rand, n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * (2*rng.Float32() - 1)
	}
	return out
}

// touch creates empty files so the directory listing finds them.
func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

func newTestMatcher(t *testing.T, opts ...Option) Matcher {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Discard()), WithTags(false)}, opts...)
	m, err := NewMatcher(opts...)
	require.NoError(t, err)
	return m
}

func TestFindBestMatchEndToEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	dir := t.TempDir()

	songA := noise(rng, 8000, 0.5)
	songB := noise(rng, 8000, 0.5)
	silence := make([]float32, 8000)
	clip := append([]float32(nil), songA[3000:4000]...)

	require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "a.wav"), songA, testRate))
	require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "b.WAV"), songB, testRate))
	require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "silence.wav"), silence, testRate))
	touch(t, dir, "notes.txt")

	clipPath := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, audio.WriteMonoWAV(clipPath, clip, testRate))

	m, err := NewMatcher(
		WithLogger(logger.Discard()),
		WithDecoder(audio.WAVDecoder{}),
		WithWorkers(2),
	)
	require.NoError(t, err)

	res, err := m.FindBestMatch(context.Background(), clipPath, dir, testRate)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "a.wav"), res.BestMatch)
	assert.Equal(t, 3000, res.Scores[0].Lag)
	assert.Equal(t, 1500*time.Millisecond, res.BestOffset)
	assert.Len(t, res.Scores, 3)
	assert.Empty(t, res.Failures)
	assert.True(t, res.FiniteSpread())
	assert.Greater(t, res.Spread, 0.0)
	assert.InDelta(t, res.Scores[0].Score-res.Scores[1].Score, res.Spread, 1e-9)
	assert.Equal(t, testRate, res.SampleRate)
	assert.NotEmpty(t, res.RunID)
	assert.Greater(t, res.Stats.ZScore, 0.0)

	// silence correlates to exactly zero and ranks last
	last := res.Scores[len(res.Scores)-1]
	assert.Equal(t, filepath.Join(dir, "silence.wav"), last.Path)
	assert.Zero(t, last.Score)
}

// render samples f over [0, seconds) at rate.
func render(seconds float64, rate int, f func(t float64) float64) []float32 {
	out := make([]float32, int(seconds*float64(rate)))
	for i := range out {
		out[i] = float32(f(float64(i) / float64(rate)))
	}
	return out
}

func TestFindBestMatchRankingIsRateInvariant(t *testing.T) {
	const clipStart, clipLen = 1.5, 1.0

	// The matching song carries a chirp over [1.5s, 2.5s) on a low tone.
	matching := func(t float64) float64 {
		v := 0.3 * math.Sin(2*math.Pi*37*t)
		if d := t - clipStart; d >= 0 && d < clipLen {
			v += 0.5 * math.Sin(2*math.Pi*(100*d+150*d*d))
		}
		return v
	}
	other := func(t float64) float64 {
		return 0.3*math.Sin(2*math.Pi*53*t) + 0.2*math.Sin(2*math.Pi*211*t)
	}
	silent := func(float64) float64 { return 0 }

	type ranking struct {
		best   string
		order  []string
		offset time.Duration
	}
	run := func(rate int) ranking {
		dir := t.TempDir()
		song := render(4, rate, matching)
		require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "match.wav"), song, rate))
		require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "other.wav"), render(4, rate, other), rate))
		require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "silence.wav"), render(4, rate, silent), rate))

		start := int(clipStart * float64(rate))
		clip := append([]float32(nil), song[start:start+int(clipLen*float64(rate))]...)
		clipPath := filepath.Join(t.TempDir(), "clip.wav")
		require.NoError(t, audio.WriteMonoWAV(clipPath, clip, rate))

		m := newTestMatcher(t, WithDecoder(audio.WAVDecoder{}), WithWorkers(3))
		res, err := m.FindBestMatch(context.Background(), clipPath, dir, rate)
		require.NoError(t, err)
		require.Len(t, res.Scores, 3)
		assert.Equal(t, start, res.Scores[0].Lag, "rate %d", rate)

		r := ranking{best: filepath.Base(res.BestMatch), offset: res.BestOffset}
		for _, e := range res.Scores {
			r.order = append(r.order, filepath.Base(e.Path))
		}
		return r
	}

	low, high := run(2000), run(4000)
	assert.Equal(t, "match.wav", low.best)
	assert.Equal(t, []string{"match.wav", "other.wav", "silence.wav"}, low.order)
	assert.Equal(t, low.best, high.best)
	assert.Equal(t, low.order, high.order)
	assert.Equal(t, 1500*time.Millisecond, low.offset)
	assert.Equal(t, low.offset, high.offset)
}

func TestFindBestMatchSineClip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dir := t.TempDir()

	tone := render(0.5, testRate, func(t float64) float64 { return 0.5 * math.Sin(2*math.Pi*250*t) })
	embedded := make([]float32, 8000)
	copy(embedded[3000:], tone)

	require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "embedded.wav"), embedded, testRate))
	require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "noise.wav"), noise(rng, 8000, 0.5), testRate))
	require.NoError(t, audio.WriteMonoWAV(filepath.Join(dir, "silence.wav"), make([]float32, 8000), testRate))

	clipPath := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, audio.WriteMonoWAV(clipPath, tone, testRate))

	m := newTestMatcher(t, WithDecoder(audio.WAVDecoder{}))
	res, err := m.FindBestMatch(context.Background(), clipPath, dir, testRate)
	require.NoError(t, err)
	require.Len(t, res.Scores, 3)

	scores := map[string]float64{}
	for _, e := range res.Scores {
		scores[filepath.Base(e.Path)] = e.Score
	}
	assert.Equal(t, filepath.Join(dir, "embedded.wav"), res.BestMatch)
	assert.Equal(t, 3000, res.Scores[0].Lag)
	assert.Greater(t, scores["embedded.wav"], scores["noise.wav"])
	assert.Greater(t, scores["embedded.wav"], scores["silence.wav"])
	assert.Zero(t, scores["silence.wav"])
}

func TestFindBestMatchSingleCandidate(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "only.mp3")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav": {samples: []float32{1, 1}},
		"only.mp3": {samples: []float32{0, 1, 1, 0}},
	}}

	m := newTestMatcher(t, WithLoader(loader))
	res, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "only.mp3"), res.BestMatch)
	assert.InDelta(t, 2.0, res.BestScore, 1e-12)
	assert.True(t, math.IsInf(res.Spread, 1))
	assert.False(t, res.FiniteSpread())

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Nil(t, doc["spread"])
	assert.Equal(t, "runner-up", doc["spread_policy"])
}

func TestFindBestMatchNoCandidates(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "readme.txt", "cover.jpg")
	loader := &fakeLoader{waves: map[string]fakeWave{}}

	m := newTestMatcher(t, WithLoader(loader))
	_, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)

	var nc *NoCandidatesError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, dir, nc.Dir)
	assert.Zero(t, loader.calls.Load(), "nothing should be decoded")
}

func TestFindBestMatchCaseSensitiveExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "LOUD.WAV")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav": {samples: []float32{1}},
		"LOUD.WAV": {samples: []float32{1, 2}},
	}}

	m := newTestMatcher(t, WithLoader(loader), WithCaseSensitiveExtensions(true))
	_, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
	var nc *NoCandidatesError
	assert.ErrorAs(t, err, &nc)

	m = newTestMatcher(t, WithLoader(loader))
	res, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "LOUD.WAV"), res.BestMatch)
}

func TestFindBestMatchMissingDirectory(t *testing.T) {
	m := newTestMatcher(t, WithLoader(&fakeLoader{}))
	_, err := m.FindBestMatch(context.Background(), "clip.wav", filepath.Join(t.TempDir(), "nope"), testRate)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindBestMatchInvalidSampleRate(t *testing.T) {
	m := newTestMatcher(t, WithLoader(&fakeLoader{}))
	for _, rate := range []int{0, -8000} {
		_, err := m.FindBestMatch(context.Background(), "clip.wav", t.TempDir(), rate)
		assert.ErrorIs(t, err, ErrInvalidSampleRate)
	}
}

func TestFindBestMatchReferenceFailure(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"a.wav": {samples: []float32{1, 2, 3}},
	}}

	m := newTestMatcher(t, WithLoader(loader))
	_, err := m.FindBestMatch(context.Background(), "missing.wav", dir, testRate)

	var refErr *ReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "missing.wav", refErr.Path)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
	assert.EqualValues(t, 1, loader.calls.Load(), "candidates must not be decoded")
}

func TestFindBestMatchIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "good.wav", "broken.mp3", "short.wav")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav":   {samples: []float32{1, 1, 1}},
		"good.wav":   {samples: []float32{0, 1, 1, 1, 0}},
		"broken.mp3": {err: &DecodeError{Path: "broken.mp3", Err: errors.New("corrupt frame")}},
		"short.wav":  {samples: []float32{1}},
	}}

	var scored, failed int
	m := newTestMatcher(t, WithLoader(loader), WithHooks(Hooks{
		OnScore:   func(ScoreEntry) { scored++ },
		OnFailure: func(CandidateFailure) { failed++ },
	}))
	res, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "good.wav"), res.BestMatch)
	assert.InDelta(t, 3.0, res.BestScore, 1e-12)
	assert.Len(t, res.Scores, 1)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, 1, scored)
	assert.Equal(t, 2, failed)

	var shortErr *InsufficientLengthError
	var decodeFailures int
	for _, f := range res.Failures {
		if errors.As(f, &shortErr) {
			assert.Equal(t, filepath.Join(dir, "short.wav"), f.Path)
		}
		var decErr *DecodeError
		if errors.As(f, &decErr) {
			decodeFailures++
		}
	}
	assert.NotNil(t, shortErr)
	assert.Equal(t, 1, decodeFailures)
}

func TestFindBestMatchAbortOnFailure(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav", "b.wav")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav": {samples: []float32{1}},
		"a.wav":    {err: &DecodeError{Path: "a.wav", Err: errors.New("truncated")}},
		"b.wav":    {samples: []float32{1, 2}, delay: 50 * time.Millisecond},
	}}

	m := newTestMatcher(t, WithLoader(loader), WithFailurePolicy(AbortOnFailure), WithWorkers(2))
	_, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
	require.Error(t, err)

	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
	assert.NotErrorIs(t, err, context.Canceled)

	var failure CandidateFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, filepath.Join(dir, "a.wav"), failure.Path)
}

func TestFindBestMatchAbortIgnoresShortCandidates(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav", "short.wav")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav":  {samples: []float32{1, 1}},
		"a.wav":     {samples: []float32{1, 1, 1}},
		"short.wav": {samples: []float32{1}},
	}}

	m := newTestMatcher(t, WithLoader(loader), WithFailurePolicy(AbortOnFailure))
	res, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.wav"), res.BestMatch)
	assert.Len(t, res.Failures, 1)
}

func TestFindBestMatchAllCandidatesFail(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav", "b.wav")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav": {samples: []float32{1, 1, 1, 1}},
		"a.wav":    {samples: []float32{1}},
		"b.wav":    {err: &DecodeError{Path: "b.wav", Err: errors.New("bad header")}},
	}}

	m := newTestMatcher(t, WithLoader(loader))
	_, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)

	assert.ErrorIs(t, err, ErrNoScores)
	var shortErr *InsufficientLengthError
	assert.ErrorAs(t, err, &shortErr)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestFindBestMatchNonFiniteScoreExcluded(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "nan.wav", "ok.wav")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav": {samples: []float32{1}},
		"nan.wav":  {samples: []float32{0}},
		"ok.wav":   {samples: []float32{1}},
	}}
	scorer := scorerFunc(func(ref, cand []float32) (correlate.Result, error) {
		if cand[0] == 0 {
			return correlate.Result{Score: math.NaN()}, nil
		}
		return correlate.Result{Score: 1}, nil
	})

	m := newTestMatcher(t, WithLoader(loader), WithScorer(scorer))
	res, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ok.wav"), res.BestMatch)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "nan.wav"), res.Failures[0].Path)
}

func TestFindBestMatchDeterministicAcrossCompletionOrders(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.wav", "b.wav", "c.wav", "d.wav", "e.wav", "f.wav"}
	touch(t, dir, names...)

	rng := rand.New(rand.NewSource(7))
	clip := noise(rng, 50, 1)

	var first *MatchResult
	for run := 0; run < 5; run++ {
		waves := map[string]fakeWave{"clip.wav": {samples: clip}}
		for i, name := range names {
			song := make([]float32, 200)
			// c.wav holds the clip itself, the others hold it at decreasing gain
			gain := float32(0.2 * float64(i))
			if name == "c.wav" {
				gain = 2
			}
			for j, v := range clip {
				song[60+j] = gain * v
			}
			waves[name] = fakeWave{
				samples: song,
				delay:   time.Duration(rng.Intn(10)) * time.Millisecond,
			}
		}

		m := newTestMatcher(t, WithLoader(&fakeLoader{waves: waves}), WithWorkers(3))
		res, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
		require.NoError(t, err)

		if first == nil {
			first = res
			continue
		}
		assert.Equal(t, first.BestMatch, res.BestMatch, "run %d", run)
		assert.Equal(t, first.Spread, res.Spread, "run %d", run)
		assert.Equal(t, first.Scores, res.Scores, "run %d", run)
	}
	assert.Equal(t, filepath.Join(dir, "c.wav"), first.BestMatch)
	assert.Equal(t, 60, first.Scores[0].Lag)
}

func TestFindBestMatchCancelled(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "slow.wav")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav": {samples: []float32{1}},
		"slow.wav": {samples: []float32{1, 1}, delay: 5 * time.Second},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	m := newTestMatcher(t, WithLoader(loader), WithHooks(Hooks{
		OnCandidates: func(int) { time.AfterFunc(20*time.Millisecond, cancel) },
	}))

	start := time.Now()
	_, err := m.FindBestMatch(ctx, "clip.wav", dir, testRate)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFindBestMatchHooksSeeEveryCandidate(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav", "b.wav", "c.mp3")
	loader := &fakeLoader{waves: map[string]fakeWave{
		"clip.wav": {samples: []float32{1}},
		"a.wav":    {samples: []float32{1}},
		"b.wav":    {samples: []float32{2}},
		"c.mp3":    {samples: []float32{3}},
	}}

	var total, seen int
	m := newTestMatcher(t, WithLoader(loader), WithHooks(Hooks{
		OnCandidates: func(n int) { total = n },
		OnScore:      func(ScoreEntry) { seen++ },
	}))
	res, err := m.FindBestMatch(context.Background(), "clip.wav", dir, testRate)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, seen)
	assert.Equal(t, filepath.Join(dir, "c.mp3"), res.BestMatch)
	assert.InDelta(t, 1.0, res.Spread, 1e-12)
}

func TestNewMatcherRejectsEmptyExtensions(t *testing.T) {
	_, err := NewMatcher(WithLogger(logger.Discard()), WithExtensions(" ", ""))
	assert.Error(t, err)
}

func TestSpreadPolicyParsing(t *testing.T) {
	p, err := ParseSpreadPolicy("running")
	require.NoError(t, err)
	assert.Equal(t, SpreadRunning, p)

	p, err = ParseSpreadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, SpreadRunnerUp, p)

	_, err = ParseSpreadPolicy("median")
	assert.Error(t, err)
}
