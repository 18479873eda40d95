package audiomatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch/audio"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch/correlate"
	"github.com/himanishpuri/audiomatch/pkg/logger"
	"github.com/himanishpuri/audiomatch/pkg/utils"
)

// matcher is the default implementation of the Matcher interface.
type matcher struct {
	cfg *Config
	log Logger
}

func NewMatcher(opts ...Option) (Matcher, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if len(cfg.Extensions) == 0 {
		return nil, errors.New("at least one candidate extension is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Loader == nil {
		cfg.Loader = audio.NewLoader(nil)
	}
	if cfg.Scorer == nil {
		cfg.Scorer = correlate.Scorer{}
	}

	return &matcher{
		cfg: cfg,
		log: cfg.Logger,
	}, nil
}

// outcome is what one candidate task reports to the reducer.
type outcome struct {
	entry   ScoreEntry
	failure *CandidateFailure
}

// FindBestMatch loads the reference once, scores every candidate in
// candidateDir concurrently and reduces the scores to a single best match.
func (m *matcher) FindBestMatch(ctx context.Context, referencePath, candidateDir string, sampleRate int) (*MatchResult, error) {
	start := time.Now()
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}

	runID := utils.NewRunID()
	m.log.Infof("Run %s: matching %s against %s at %d Hz", runID, referencePath, candidateDir, sampleRate)

	// 1. Enumerate candidates before any decoding work
	candidates, err := utils.ListAudioFiles(candidateDir, m.cfg.Extensions, m.cfg.CaseSensitiveExtensions)
	if err != nil {
		return nil, fmt.Errorf("enumerating candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, &NoCandidatesError{Dir: candidateDir, Extensions: m.cfg.Extensions}
	}
	m.log.Infof("Found %d candidate(s)", len(candidates))
	if m.cfg.Hooks.OnCandidates != nil {
		m.cfg.Hooks.OnCandidates(len(candidates))
	}

	// 2. Load the reference once; it is shared read-only by every task
	ref, err := m.cfg.Loader.Load(ctx, referencePath, sampleRate)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ReferenceError{Path: referencePath, Err: err}
	}
	m.log.Infof("Reference: %s samples (%s)", humanize.Comma(int64(ref.Len())), ref.Duration().Round(time.Millisecond))

	// 3. Fan out one decode+score task per candidate
	outcomes := make(chan outcome, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)

	var runErr error
	go func() {
		for _, path := range candidates {
			path := path
			g.Go(func() error {
				return m.runCandidate(gctx, ref, path, sampleRate, outcomes)
			})
		}
		runErr = g.Wait()
		close(outcomes)
	}()

	// 4. Reduce in completion order
	var entries []ScoreEntry
	var failures []CandidateFailure
	for o := range outcomes {
		if o.failure != nil {
			failures = append(failures, *o.failure)
			if m.cfg.Hooks.OnFailure != nil {
				m.cfg.Hooks.OnFailure(*o.failure)
			}
			continue
		}
		entries = append(entries, o.entry)
		if m.cfg.Hooks.OnScore != nil {
			m.cfg.Hooks.OnScore(o.entry)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("aborting run: %w", runErr)
	}

	summary, err := Reduce(entries, m.cfg.SpreadPolicy)
	if err != nil {
		errs := []error{err}
		for _, f := range failures {
			errs = append(errs, f)
		}
		return nil, errors.Join(errs...)
	}

	result := &MatchResult{
		RunID:      runID,
		Reference:  referencePath,
		SampleRate: sampleRate,
		BestMatch:  summary.Best.Path,
		BestScore:  summary.Best.Score,
		BestOffset: summary.Best.Offset,
		Spread:     summary.Spread,
		Policy:     m.cfg.SpreadPolicy,
		Scores:     summary.Ranked,
		Failures:   failures,
		Stats:      scoreStats(summary.Ranked),
	}

	if m.cfg.ReadTags {
		if tags, err := audio.ReadTags(result.BestMatch); err != nil {
			m.log.Debugf("No tags for %s: %v", result.BestMatch, err)
		} else {
			result.Tags = tags
		}
	}

	result.Elapsed = time.Since(start)
	m.log.Infof("Run %s: best match %s (score %.4f, %d scored, %d excluded) in %s",
		runID, result.BestMatch, result.BestScore, len(entries), len(failures), result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// runCandidate loads and scores one candidate. It returns a non-nil error
// only to stop the whole run: on cancellation, or on a decode failure under
// AbortOnFailure.
func (m *matcher) runCandidate(ctx context.Context, ref *audio.Waveform, path string, sampleRate int, out chan<- outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wave, err := m.cfg.Loader.Load(ctx, path, sampleRate)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failure := &CandidateFailure{Path: path, Err: err}
		m.log.Warnf("Excluding %s: %v", path, err)
		out <- outcome{failure: failure}

		var decErr *DecodeError
		if m.cfg.FailurePolicy == AbortOnFailure && errors.As(err, &decErr) {
			return *failure
		}
		return nil
	}

	res, err := m.cfg.Scorer.Score(ref.Samples, wave.Samples)
	if err == nil && (math.IsNaN(res.Score) || math.IsInf(res.Score, 0)) {
		err = fmt.Errorf("non-finite correlation %v", res.Score)
	}
	if err != nil {
		m.log.Warnf("Excluding %s: %v", path, err)
		out <- outcome{failure: &CandidateFailure{Path: path, Err: err}}
		return nil
	}

	entry := ScoreEntry{
		Path:   path,
		Score:  res.Score,
		Lag:    res.Lag,
		Offset: time.Duration(float64(res.Lag) / float64(sampleRate) * float64(time.Second)),
	}
	m.log.Debugf("Scored %s: %.4f at lag %d (%s samples)", path, entry.Score, entry.Lag, humanize.Comma(int64(wave.Len())))
	out <- outcome{entry: entry}
	return nil
}
