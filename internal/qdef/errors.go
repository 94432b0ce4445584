package qdef

import (
	"errors"
	"fmt"
)

// DefinitionError reports a malformed or unresolvable query definition.
//
// Definition errors fail fast at compile time, before any backend call:
//   - Malformed query JSON
//   - Unknown expression type or function name
//   - Unresolved table/column reference
//   - Cyclic stored-query reference
//   - Cross-data-source table set
//   - Grouping validity violations
//
// The message always names the offending construct; it is user-visible.
type DefinitionError struct {
	// Construct names what was wrong: a table, column, function, operator,
	// or operation identifier.
	Construct string

	// Message is the user-facing description.
	Message string
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	if e.Construct != "" {
		return fmt.Sprintf("invalid query definition: %s: %s", e.Construct, e.Message)
	}
	return fmt.Sprintf("invalid query definition: %s", e.Message)
}

// IsDefinitionError reports whether err is (or wraps) a DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

// Definitionf builds a DefinitionError for the named construct.
func Definitionf(construct, format string, args ...any) *DefinitionError {
	return &DefinitionError{Construct: construct, Message: fmt.Sprintf(format, args...)}
}
