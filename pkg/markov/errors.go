package markov

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError (and *SamplingError) under errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState matches every *InvalidStateError under errors.Is.
	ErrInvalidState = errors.New("invalid chain state")
	// ErrSampling matches every *SamplingError under errors.Is.
	ErrSampling = errors.New("sampling failed")
)

// ValidationError reports a malformed transition matrix, initial state
// specification or run argument. Row is -1 when the problem is not tied to a
// particular row.
type ValidationError struct {
	Field   string
	Row     int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("invalid %s (row %d): %s", e.Field, e.Row, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidStateError is returned when an operation needs an attached matrix
// but the chain has none.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: chain is %s, a transition matrix must be attached first", e.Op, e.Status)
}

// Is reports whether target is ErrInvalidState.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// SamplingError reports a degenerate distribution handed to the categorical
// sampler. It also matches ErrValidation since the distribution is an input.
type SamplingError struct {
	Message string
}

func (e *SamplingError) Error() string {
	return "cannot sample: " + e.Message
}

// Is reports whether target is ErrSampling or ErrValidation.
func (e *SamplingError) Is(target error) bool {
	return target == ErrSampling || target == ErrValidation
}

func newValidationError(field string, row int, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Row: row, Message: fmt.Sprintf(format, args...)}
}
