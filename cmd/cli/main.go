package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/audiomatch/internal/config"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch"
	"github.com/himanishpuri/audiomatch/pkg/logger"
)

var version = "dev"

// cliFlags holds values that are not part of the shared configuration file.
type cliFlags struct {
	configPath string
	jsonOut    bool
	noProgress bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	var cf cliFlags

	cmd := &cobra.Command{
		Use:   "audiomatch <clip> <song-dir>",
		Short: "Find the recording that contains an audio clip",
		Long: `audiomatch scores every .mp3/.wav file in <song-dir> against <clip> by
cross-correlating their waveforms and reports the best match.`,
		Version:       version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveConfig(cmd, cfg, cf.configPath)
			if err != nil {
				return err
			}
			return runMatch(cmd, resolved, cf, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Sample rate both clip and songs are decoded at")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "Candidates processed concurrently (0 = number of CPUs)")
	f.StringSliceVar(&cfg.Extensions, "ext", cfg.Extensions, "Candidate file extensions (repeatable)")
	f.BoolVar(&cfg.CaseSensitiveExt, "case-sensitive-ext", cfg.CaseSensitiveExt, "Match file extensions case-sensitively")
	f.StringVar(&cfg.Spread, "spread", cfg.Spread, "Spread policy: runner-up or running")
	f.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Abort the run when a candidate cannot be decoded")
	f.StringVar(&cfg.Method, "method", cfg.Method, "Correlation method: auto, direct or fft")
	f.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "ffmpeg binary used for decoding and resampling")
	f.DurationVar(&cfg.DecodeTimeout, "decode-timeout", cfg.DecodeTimeout, "Upper bound for decoding a single file")
	f.BoolVar(&cfg.ReadTags, "tags", cfg.ReadTags, "Read title/artist tags of the best match")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: DEBUG, INFO, WARN or ERROR")
	f.StringVar(&cf.configPath, "config", os.Getenv(config.EnvConfigPath), "YAML configuration file")
	f.BoolVar(&cf.jsonOut, "json", false, "Print the result as a JSON document")
	f.BoolVar(&cf.noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

// resolveConfig layers the configuration file, the environment and then any
// flag the user set explicitly.
func resolveConfig(cmd *cobra.Command, flagCfg config.Config, path string) (config.Config, error) {
	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	f := cmd.Flags()
	if f.Changed("sample-rate") {
		cfg.SampleRate = flagCfg.SampleRate
	}
	if f.Changed("workers") {
		cfg.Workers = flagCfg.Workers
	}
	if f.Changed("ext") {
		cfg.Extensions = flagCfg.Extensions
	}
	if f.Changed("case-sensitive-ext") {
		cfg.CaseSensitiveExt = flagCfg.CaseSensitiveExt
	}
	if f.Changed("spread") {
		cfg.Spread = flagCfg.Spread
	}
	if f.Changed("strict") {
		cfg.Strict = flagCfg.Strict
	}
	if f.Changed("method") {
		cfg.Method = flagCfg.Method
	}
	if f.Changed("ffmpeg") {
		cfg.FFmpegPath = flagCfg.FFmpegPath
	}
	if f.Changed("decode-timeout") {
		cfg.DecodeTimeout = flagCfg.DecodeTimeout
	}
	if f.Changed("tags") {
		cfg.ReadTags = flagCfg.ReadTags
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flagCfg.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runMatch(cmd *cobra.Command, cfg config.Config, cf cliFlags, clip, dir string) error {
	start := time.Now()
	log := logger.GetLogger()
	level, _ := logger.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	opts, err := cfg.MatcherOptions()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bar := newProgress(os.Stderr, !cf.noProgress && showProgress(cf.jsonOut))
	hooks := audiomatch.Hooks{
		OnCandidates: bar.Start,
		OnScore: func(e audiomatch.ScoreEntry) {
			bar.Increment()
			if !cf.jsonOut {
				printScoreLine(out, e)
			}
		},
		OnFailure: func(audiomatch.CandidateFailure) {
			bar.Increment()
		},
	}
	opts = append(opts, audiomatch.WithLogger(log), audiomatch.WithHooks(hooks))

	m, err := audiomatch.NewMatcher(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Debugf("Matching %s against %s (rate %d Hz, method %s, spread %s)", clip, dir, cfg.SampleRate, cfg.Method, cfg.Spread)
	res, err := m.FindBestMatch(ctx, clip, dir, cfg.SampleRate)
	bar.Finish(err == nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	if cf.jsonOut {
		return printJSON(out, res)
	}
	printSummary(out, res)
	printRuntime(out, time.Since(start))
	return nil
}

// showProgress reports whether a bar on stderr would be visible without
// being interleaved with the per-candidate lines on a shared terminal.
func showProgress(jsonOut bool) bool {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return false
	}
	return jsonOut || !isatty.IsTerminal(os.Stdout.Fd())
}
