package utils

import "github.com/google/uuid"

// NewRunID returns a random identifier used to correlate log lines and
// reports of a single matching run.
func NewRunID() string {
	return uuid.NewString()
}
