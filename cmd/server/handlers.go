package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch"
	"github.com/himanishpuri/audiomatch/pkg/logger"
)

// maxRequestBody bounds the JSON body of POST /api/match.
const maxRequestBody = 1 << 20

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	matcher audiomatch.Matcher
	config  *ServerConfig
	log     audiomatch.Logger

	started       time.Time
	matchesServed atomic.Int64
	matchesFailed atomic.Int64
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	SampleRate     int
	MatchTimeout   time.Duration
	BaseDir        string // when set, requested paths must live under it
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(matcher audiomatch.Matcher, config *ServerConfig) *Server {
	return &Server{
		matcher: matcher,
		config:  config,
		log:     logger.GetLogger(),
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "audiomatch API",
		"version": version,
		"endpoints": map[string]string{
			"health":  "GET /health",
			"metrics": "GET /api/health/metrics",
			"match":   "POST /api/match",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:        "healthy",
		SampleRate:    s.config.SampleRate,
		MatchesServed: s.matchesServed.Load(),
		MatchesFailed: s.matchesFailed.Load(),
		StartedAt:     s.started.Format(time.RFC3339),
		Uptime:        strings.TrimSuffix(humanize.Time(s.started), " ago"),
	})
}

// handleMatch handles POST /api/match
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req MatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SampleRate == 0 {
		req.SampleRate = s.config.SampleRate
	}
	for _, p := range []string{req.Reference, req.Directory} {
		if !s.allowedPath(p) {
			s.respondError(w, http.StatusForbidden, fmt.Sprintf("Path %s is outside the served directory", p))
			return
		}
	}

	ctx := r.Context()
	if s.config.MatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.MatchTimeout)
		defer cancel()
	}

	s.log.Infof("Matching %s against %s at %d Hz", req.Reference, req.Directory, req.SampleRate)
	res, err := s.matcher.FindBestMatch(ctx, req.Reference, req.Directory, req.SampleRate)
	if err != nil {
		s.matchesFailed.Add(1)
		status := matchErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Errorf("Match failed: %v", err)
		} else {
			s.log.Warnf("Match rejected (%d): %v", status, err)
		}
		s.respondError(w, status, err.Error())
		return
	}

	s.matchesServed.Add(1)
	s.respondJSON(w, http.StatusOK, newMatchResponse(res))
}

// matchErrorStatus maps a matcher error to an HTTP status code. A candidate
// failure that aborted the run is a server-side fault even when it wraps
// os.ErrNotExist; only a missing directory is reported as 404.
func matchErrorStatus(err error) int {
	var noCandidates *audiomatch.NoCandidatesError
	var refErr *audiomatch.ReferenceError
	var failure audiomatch.CandidateFailure
	switch {
	case errors.Is(err, audiomatch.ErrInvalidSampleRate):
		return http.StatusBadRequest
	case errors.As(err, &refErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &failure):
		return http.StatusInternalServerError
	case errors.As(err, &noCandidates), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// allowedPath reports whether p lies inside the configured base directory.
func (s *Server) allowedPath(p string) bool {
	if s.config.BaseDir == "" {
		return true
	}
	base, err := filepath.Abs(s.config.BaseDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
