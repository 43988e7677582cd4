package core

import (
	"strings"

	"github.com/google/uuid"
)

// RunID identifies a single analysis run.
type RunID string

// NewRunID generates a unique run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

func (id RunID) String() string {
	return string(id)
}

func (id RunID) IsEmpty() bool {
	return strings.TrimSpace(string(id)) == ""
}

// ParseRunID validates and converts a string into a RunID.
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", NewValidationError("run_id", "must not be empty")
	}
	return RunID(s), nil
}
