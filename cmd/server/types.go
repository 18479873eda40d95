package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/himanishpuri/audiomatch/pkg/audiomatch"
)

// MatchRequest is the request body for POST /api/match
type MatchRequest struct {
	// Reference is the path of the clip to look for
	Reference string `json:"reference"`

	// Directory holds the candidate recordings
	Directory string `json:"directory"`

	// SampleRate is optional, the server default applies when zero
	SampleRate int `json:"sample_rate,omitempty"`
}

// Validate checks if the request is valid
func (r *MatchRequest) Validate() error {
	if strings.TrimSpace(r.Reference) == "" {
		return fmt.Errorf("reference is required")
	}
	if strings.TrimSpace(r.Directory) == "" {
		return fmt.Errorf("directory is required")
	}
	if r.SampleRate < 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", r.SampleRate)
	}
	return nil
}

// CandidateDTO represents one scored recording
type CandidateDTO struct {
	Path     string  `json:"path"`
	Score    float64 `json:"score"`
	OffsetMs int64   `json:"offset_ms"`
}

// FailureDTO represents a recording excluded from the ranking
type FailureDTO struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// MatchResponse is the response for POST /api/match
type MatchResponse struct {
	RunID      string         `json:"run_id"`
	BestMatch  string         `json:"best_match"`
	Title      string         `json:"title,omitempty"`
	Artist     string         `json:"artist,omitempty"`
	Score      float64        `json:"score"`
	OffsetMs   int64          `json:"offset_ms"`
	Spread     *float64       `json:"spread"` // null when only one candidate scored
	ZScore     float64        `json:"z_score"`
	SampleRate int            `json:"sample_rate"`
	Candidates []CandidateDTO `json:"candidates"`
	Failures   []FailureDTO   `json:"failures,omitempty"`
	ElapsedMs  int64          `json:"elapsed_ms"`
}

func newMatchResponse(res *audiomatch.MatchResult) MatchResponse {
	resp := MatchResponse{
		RunID:      res.RunID,
		BestMatch:  res.BestMatch,
		Score:      res.BestScore,
		OffsetMs:   res.BestOffset.Milliseconds(),
		ZScore:     res.Stats.ZScore,
		SampleRate: res.SampleRate,
		Candidates: make([]CandidateDTO, len(res.Scores)),
		ElapsedMs:  res.Elapsed.Milliseconds(),
	}
	if res.Tags != nil {
		resp.Title = res.Tags.Title
		resp.Artist = res.Tags.Artist
	}
	if !math.IsInf(res.Spread, 0) && !math.IsNaN(res.Spread) {
		spread := res.Spread
		resp.Spread = &spread
	}
	for i, e := range res.Scores {
		resp.Candidates[i] = CandidateDTO{
			Path:     e.Path,
			Score:    e.Score,
			OffsetMs: e.Offset.Milliseconds(),
		}
	}
	for _, f := range res.Failures {
		dto := FailureDTO{Path: f.Path}
		if f.Err != nil {
			dto.Error = f.Err.Error()
		}
		resp.Failures = append(resp.Failures, dto)
	}
	return resp
}

// MetricsResponse provides server health and usage counters
type MetricsResponse struct {
	Status        string `json:"status"`
	SampleRate    int    `json:"sample_rate"`
	MatchesServed int64  `json:"matches_served"`
	MatchesFailed int64  `json:"matches_failed"`
	StartedAt     string `json:"started_at"`
	Uptime        string `json:"uptime"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
