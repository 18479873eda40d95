package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/himanishpuri/audiomatch/internal/config"
	"github.com/himanishpuri/audiomatch/pkg/audiomatch"
	"github.com/himanishpuri/audiomatch/pkg/logger"
)

var version = "dev"

var (
	port           int
	configPath     string
	baseDir        string
	matchTimeout   time.Duration
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&configPath, "config", os.Getenv(config.EnvConfigPath), "YAML configuration file")
	flag.StringVar(&baseDir, "base-dir", os.Getenv("AUDIOMATCH_BASE_DIR"), "Restrict requested paths to this directory")
	flag.DurationVar(&matchTimeout, "match-timeout", 5*time.Minute, "Upper bound for a single match request")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func main() {
	flag.Parse()

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg := logger.GetLogger()
	level, _ := logger.ParseLevel(cfg.LogLevel)
	lg.SetLevel(level)

	// Parse allowed origins
	origins := []string{"*"}
	if allowedOrigins != "*" {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	opts, err := cfg.MatcherOptions()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	matcher, err := audiomatch.NewMatcher(append(opts, audiomatch.WithLogger(lg))...)
	if err != nil {
		log.Fatalf("Failed to create matcher: %v", err)
	}

	server := NewServer(matcher, &ServerConfig{
		Port:           port,
		SampleRate:     cfg.SampleRate,
		MatchTimeout:   matchTimeout,
		BaseDir:        baseDir,
		AllowedOrigins: origins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
