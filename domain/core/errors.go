package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrRunNotFound    = fmt.Errorf("%w: run", ErrNotFound)
	ErrNoData         = errors.New("no data loaded for analysis")
	ErrUnknownCarrier = errors.New("unknown carrier profile")
	ErrMissingColumns = errors.New("missing required columns")
	ErrColumnAbsent   = errors.New("source column absent from dataset")
	ErrEmptySeries    = errors.New("empty value series")
	ErrRunAbandoned   = errors.New("run abandoned")
	ErrRenderFailed   = errors.New("visualization render failed")
)

// SchemaError reports every required column missing from a dataset, not just
// the first one found.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error {
	return ErrMissingColumns
}

// Error constructors with context
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewStepError(step string, err error) error {
	return fmt.Errorf("aggregation step %s: %w", step, err)
}

func NewRenderError(key string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrRenderFailed, key, err)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsSchemaError(err error) bool {
	return errors.Is(err, ErrMissingColumns)
}
