// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all CLI commands.
//
// STANDARDIZED PATTERN:
//   - Handlers always return errors, never print and return nil
//   - main displays the error once and exits with GetExitCode
//   - Structured error types carry what JSON/YAML output needs

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/personachat/internal/api"
	"github.com/jeranaias/personachat/internal/persona"
	"github.com/jeranaias/personachat/internal/session"
	"github.com/jeranaias/personachat/internal/turn"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitTransportError indicates the backend could not be reached or failed
	ExitTransportError = 2
	// ExitQuotaError indicates the daily message limit is used up
	ExitQuotaError = 3
	// ExitUsageError indicates invalid command usage or arguments (EX_USAGE)
	ExitUsageError = 64
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// UsageError is returned for an unknown command.
type UsageError struct {
	Command string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("unknown command %q (see 'personachat help')", e.Command)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // e.g. "session", "persona"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, turn.ErrQuotaExceeded) {
		return ExitQuotaError
	}
	var failure *turn.Failure
	if errors.As(err, &failure) {
		if failure.Class == turn.ClassQuota {
			return ExitQuotaError
		}
		return ExitTransportError
	}
	if errors.Is(err, turn.ErrTransport) || errors.Is(err, api.ErrServer) {
		return ExitTransportError
	}

	var validationErr *ValidationError
	var usageErr *UsageError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &usageErr):
		return ExitUsageError
	case errors.Is(err, session.ErrUsernameTooShort),
		errors.Is(err, session.ErrMessageTooLong),
		errors.Is(err, api.ErrEmptyMessage),
		errors.Is(err, persona.ErrUnknown):
		return ExitUsageError
	}

	return ExitGeneralError
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w in the given format. Text output is a single
// styled line; JSON and YAML use the Response envelope.
func DisplayError(w io.Writer, command string, err error, format Format) {
	if err == nil {
		return
	}
	if format != FormatText {
		resp := NewErrorResponse(command, err)
		resp.ErrorType = errorType(err)
		_ = Emit(w, format, resp)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), userFacing(err))
}

// userFacing prefers the fixed chat message for reply failures.
func userFacing(err error) string {
	var failure *turn.Failure
	if errors.As(err, &failure) {
		return failure.UserMessage()
	}
	return err.Error()
}

func errorType(err error) string {
	switch GetExitCode(err) {
	case ExitQuotaError:
		return "quota_exceeded"
	case ExitTransportError:
		return "transport_error"
	case ExitUsageError:
		return "usage_error"
	}
	var nf *NotFoundError
	if errors.As(err, &nf) || errors.Is(err, api.ErrNotFound) {
		return "not_found"
	}
	return "error"
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
