package exec

import (
	"errors"
	"fmt"
	"strings"
)

// SafetyError reports a statement rejected by the native-SQL gate before
// any backend call. The message is deliberately generic: it names the
// policy, never the backend or driver internals.
type SafetyError struct {
	Message string
}

func (e *SafetyError) Error() string {
	return fmt.Sprintf("SAFETY_VIOLATION: %s", e.Message)
}

// IsSafetyError returns true if the error is a safety-gate rejection.
// Uses errors.As to handle wrapped errors.
func IsSafetyError(err error) bool {
	var se *SafetyError
	return errors.As(err, &se)
}

// ExecError represents a backend execution failure, classified into a
// small set of user-facing categories. The user-visible Message never
// contains raw driver text; Cause carries it for server-side logs.
type ExecError struct {
	// Code identifies the failure category.
	Code ExecErrorCode

	// Message is the user-facing description.
	Message string

	// Source identifies the data source the statement ran against.
	Source string

	// Cause is the underlying driver error, for logs only.
	Cause error
}

// ExecErrorCode categorizes execution failures.
type ExecErrorCode string

const (
	// ErrCodeDuplicateColumn indicates two result columns share a name.
	ErrCodeDuplicateColumn ExecErrorCode = "DUPLICATE_COLUMN"

	// ErrCodeSyntax indicates the backend rejected the statement text.
	ErrCodeSyntax ExecErrorCode = "SYNTAX_ERROR"

	// ErrCodeConnection indicates the backend was unreachable or refused
	// the credentials.
	ErrCodeConnection ExecErrorCode = "CONNECTION_FAILED"

	// ErrCodeBackend is the generic category for everything else.
	ErrCodeBackend ExecErrorCode = "BACKEND_ERROR"
)

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s (source=%s)", e.Code, e.Message, e.Source)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the driver error to errors.Is/As chains.
func (e *ExecError) Unwrap() error { return e.Cause }

// Classify maps a driver error to a user-facing ExecError. The match is
// on message substrings because database/sql drivers do not share a
// typed error vocabulary.
func Classify(source string, err error) *ExecError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate column"):
		return &ExecError{
			Code:    ErrCodeDuplicateColumn,
			Message: "two selected columns share a name; alias one of them",
			Source:  source,
			Cause:   err,
		}
	case strings.Contains(msg, "syntax"):
		return &ExecError{
			Code:    ErrCodeSyntax,
			Message: "the generated statement was rejected by the database; check custom expressions and native SQL",
			Source:  source,
			Cause:   err,
		}
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "access denied"),
		strings.Contains(msg, "authentication failed"),
		strings.Contains(msg, "password authentication"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "connection reset"):
		return &ExecError{
			Code:    ErrCodeConnection,
			Message: "could not connect to the data source; check its credentials and availability",
			Source:  source,
			Cause:   err,
		}
	default:
		return &ExecError{
			Code:    ErrCodeBackend,
			Message: "the database reported an error while running this query",
			Source:  source,
			Cause:   err,
		}
	}
}
