package audiomatch

import (
	"runtime"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch/audio"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch/correlate"
	"github.com/himanishpuri/audiomatch/pkg/utils"
)

type Config struct {
	Workers                 int
	Extensions              []string
	CaseSensitiveExtensions bool
	SpreadPolicy            SpreadPolicy
	FailurePolicy           FailurePolicy
	ReadTags                bool
	Loader                  Loader
	Scorer                  Scorer
	Logger                  Logger
	Hooks                   Hooks
}

// Hooks are invoked from the reducing goroutine, one call at a time, in
// completion order.
type Hooks struct {
	OnCandidates func(total int)
	OnScore      func(entry ScoreEntry)
	OnFailure    func(failure CandidateFailure)
}

type Option func(*Config)

// WithWorkers bounds the number of candidates decoded and scored at once.
// Values below 1 mean runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithExtensions(exts ...string) Option {
	return func(c *Config) {
		c.Extensions = utils.NormalizeExtensions(exts)
	}
}

func WithCaseSensitiveExtensions(on bool) Option {
	return func(c *Config) {
		c.CaseSensitiveExtensions = on
	}
}

func WithSpreadPolicy(p SpreadPolicy) Option {
	return func(c *Config) {
		c.SpreadPolicy = p
	}
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *Config) {
		c.FailurePolicy = p
	}
}

// WithTags enables reading the best match's embedded tags.
func WithTags(on bool) Option {
	return func(c *Config) {
		c.ReadTags = on
	}
}

func WithLoader(l Loader) Option {
	return func(c *Config) {
		c.Loader = l
	}
}

// WithDecoder builds the default loader around d.
func WithDecoder(d audio.Decoder) Option {
	return func(c *Config) {
		c.Loader = audio.NewLoader(d)
	}
}

func WithScorer(s Scorer) Option {
	return func(c *Config) {
		c.Scorer = s
	}
}

// WithMethod selects the correlation algorithm of the default scorer.
func WithMethod(m correlate.Method) Option {
	return func(c *Config) {
		c.Scorer = correlate.Scorer{Method: m}
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithHooks(h Hooks) Option {
	return func(c *Config) {
		c.Hooks = h
	}
}

func defaultConfig() *Config {
	return &Config{
		Workers:       runtime.GOMAXPROCS(0),
		Extensions:    utils.DefaultAudioExtensions,
		SpreadPolicy:  SpreadRunnerUp,
		FailurePolicy: IsolateFailures,
		ReadTags:      true,
	}
}
