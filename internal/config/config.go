package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch/audio"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch/correlate"
	"github.com/himanishpuri/audiomatch/pkg/logger"
	"github.com/himanishpuri/audiomatch/pkg/utils"
)

const (
	EnvConfigPath = "AUDIOMATCH_CONFIG"
	EnvFFmpegPath = "AUDIOMATCH_FFMPEG"
	EnvLogLevel   = "LOG_LEVEL"

	DefaultSampleRate = 2000
)

// Config contains the matcher configuration shared by the CLI and the server
type Config struct {
	SampleRate       int           `yaml:"sample_rate"`
	Workers          int           `yaml:"workers"`
	Extensions       []string      `yaml:"extensions"`
	CaseSensitiveExt bool          `yaml:"case_sensitive_ext"`
	Spread           string        `yaml:"spread"`
	Strict           bool          `yaml:"strict"`
	Method           string        `yaml:"method"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	DecodeTimeout    time.Duration `yaml:"decode_timeout"`
	ReadTags         bool          `yaml:"read_tags"`
	LogLevel         string        `yaml:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		SampleRate:    DefaultSampleRate,
		Workers:       0,
		Extensions:    append([]string(nil), utils.DefaultAudioExtensions...),
		Spread:        audiomatch.SpreadRunnerUp.String(),
		Method:        correlate.Auto.String(),
		FFmpegPath:    "ffmpeg",
		DecodeTimeout: audio.DefaultDecodeTimeout,
		ReadTags:      true,
		LogLevel:      "INFO",
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.FFmpegPath = ExpandHome(cfg.FFmpegPath)
	return cfg, nil
}

// ApplyEnv overrides file values with AUDIOMATCH_FFMPEG and LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvFFmpegPath); v != "" {
		c.FFmpegPath = ExpandHome(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./audiomatch.yaml",
		"./audiomatch.yml",
		filepath.Join(home, ".config", "audiomatch", "config.yaml"),
		filepath.Join(home, ".config", "audiomatch", "config.yml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}
	if len(utils.NormalizeExtensions(c.Extensions)) == 0 {
		return fmt.Errorf("extensions cannot be empty")
	}
	if _, err := audiomatch.ParseSpreadPolicy(c.Spread); err != nil {
		return err
	}
	if _, err := correlate.ParseMethod(c.Method); err != nil {
		return err
	}
	if c.DecodeTimeout < 0 {
		return fmt.Errorf("decode_timeout cannot be negative, got %s", c.DecodeTimeout)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// MatcherOptions translates the configuration into matcher options. The
// configuration is expected to be valid.
func (c *Config) MatcherOptions() ([]audiomatch.Option, error) {
	spread, err := audiomatch.ParseSpreadPolicy(c.Spread)
	if err != nil {
		return nil, err
	}
	method, err := correlate.ParseMethod(c.Method)
	if err != nil {
		return nil, err
	}

	failure := audiomatch.IsolateFailures
	if c.Strict {
		failure = audiomatch.AbortOnFailure
	}

	ff := &audio.FFmpegDecoder{Binary: c.FFmpegPath, Timeout: c.DecodeTimeout}
	return []audiomatch.Option{
		audiomatch.WithWorkers(c.Workers),
		audiomatch.WithExtensions(c.Extensions...),
		audiomatch.WithCaseSensitiveExtensions(c.CaseSensitiveExt),
		audiomatch.WithSpreadPolicy(spread),
		audiomatch.WithFailurePolicy(failure),
		audiomatch.WithMethod(method),
		audiomatch.WithDecoder(audio.NewAutoDecoder(ff)),
		audiomatch.WithTags(c.ReadTags),
	}, nil
}
