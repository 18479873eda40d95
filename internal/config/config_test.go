package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults",
			modify: func(c *Config) {},
		},
		{
			name:    "zero sample rate",
			modify:  func(c *Config) { c.SampleRate = 0 },
			wantErr: true,
		},
		{
			name:    "negative workers",
			modify:  func(c *Config) { c.Workers = -1 },
			wantErr: true,
		},
		{
			name:   "explicit workers",
			modify: func(c *Config) { c.Workers = 16 },
		},
		{
			name:    "no extensions",
			modify:  func(c *Config) { c.Extensions = []string{" "} },
			wantErr: true,
		},
		{
			name:   "extension without dot",
			modify: func(c *Config) { c.Extensions = []string{"flac"} },
		},
		{
			name:   "running spread",
			modify: func(c *Config) { c.Spread = "running" },
		},
		{
			name:    "unknown spread",
			modify:  func(c *Config) { c.Spread = "median" },
			wantErr: true,
		},
		{
			name:    "unknown method",
			modify:  func(c *Config) { c.Method = "wavelet" },
			wantErr: true,
		},
		{
			name:    "negative decode timeout",
			modify:  func(c *Config) { c.DecodeTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.LogLevel = "chatty" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audiomatch.yaml")
	content := `sample_rate: 8000
workers: 3
extensions: [".flac", "ogg"]
case_sensitive_ext: true
spread: running
strict: true
method: fft
decode_timeout: 45s
read_tags: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.SampleRate)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{".flac", "ogg"}, cfg.Extensions)
	assert.True(t, cfg.CaseSensitiveExt)
	assert.Equal(t, "running", cfg.Spread)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "fft", cfg.Method)
	assert.Equal(t, 45*time.Second, cfg.DecodeTimeout)
	assert.False(t, cfg.ReadTags)

	// unset keys keep their defaults
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err, "an explicitly named file must exist")
}

func TestLoadConfigFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sample_rate: [oops"), 0o644))

	_, err := LoadConfigFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvFFmpegPath, "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv(EnvLogLevel, "debug")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, filepath.Join("/home/tester", "bin", "ffmpeg"), ExpandHome("~/bin/ffmpeg"))
	assert.Equal(t, "/usr/bin/ffmpeg", ExpandHome("/usr/bin/ffmpeg"))
}

func TestMatcherOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strict = true
	opts, err := cfg.MatcherOptions()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	cfg.Method = "bogus"
	_, err = cfg.MatcherOptions()
	assert.Error(t, err)
}
