// Package output provides structured output and error handling for the microfactory CLI.
package output

import "errors"

// Exit codes:
// 0 = Success
// 1 = Publish failure (store rejected or could not be reached)
// 2 = Generation failure (the language model capability gave up)
// 3 = User error (bad args, invalid configuration)
const (
	ExitSuccess           = 0
	ExitPublishFailure    = 1
	ExitGenerationFailure = 2
	ExitUserError         = 3
)

// ExitError is an error that carries an exit code for the CLI.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/errors.As support.
func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUserError creates an error for user-caused issues (exit code 3).
// Use for: bad arguments, missing configuration, unknown template.
func NewUserError(message string) *ExitError {
	return &ExitError{
		Code:    ExitUserError,
		Message: message,
	}
}

// NewPublishError creates an error for store failures (exit code 1).
func NewPublishError(message string) *ExitError {
	return &ExitError{
		Code:    ExitPublishFailure,
		Message: message,
	}
}

// NewPublishErrorWithCause creates a publish error wrapping an underlying cause.
func NewPublishErrorWithCause(message string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitPublishFailure,
		Message: message,
		Cause:   cause,
	}
}

// NewGenerationError creates an error for LLM failures (exit code 2).
func NewGenerationError(message string) *ExitError {
	return &ExitError{
		Code:    ExitGenerationFailure,
		Message: message,
	}
}

// NewGenerationErrorWithCause creates a generation error wrapping an underlying cause.
func NewGenerationErrorWithCause(message string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitGenerationFailure,
		Message: message,
		Cause:   cause,
	}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil, ExitUserError for non-ExitError errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return ExitUserError
}
