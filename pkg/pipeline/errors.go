package pipeline

import (
	"errors"
	"fmt"
)

// Error types carried on the wire in addition to the agent error types.
const (
	ErrorTypeValidation  = "validation_error"
	ErrorTypeEmptyOutput = "empty_output"
)

var ErrEmptyTopic = errors.New("topic must not be empty")

// Failure is an error with a machine readable type tag.
type Failure interface {
	error
	ErrorType() string
}

// ValidationError reports a malformed request. It is raised before any stage
// starts.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) ErrorType() string {
	return ErrorTypeValidation
}

// AgentError reports a stage that failed: the agent emitted an error, timed
// out, or produced no usable content.
type AgentError struct {
	Stage   string
	Type    string
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Message)
}

func (e *AgentError) ErrorType() string {
	return e.Type
}

// ErrorType extracts the type tag of err, falling back to fallback.
func ErrorType(err error, fallback string) string {
	var f Failure
	if errors.As(err, &f) {
		return f.ErrorType()
	}
	return fallback
}
