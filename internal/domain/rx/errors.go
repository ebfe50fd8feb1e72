// Package rx holds the value types and error taxonomy shared by the
// prescription authoring domains (intake, selection, assembly, workflow).
package rx

import (
	"errors"
	"fmt"
)

// ValidationError reports a required field that is empty or invalid at a
// stage boundary. It never implies corrupted state: the rejected action
// simply did not happen.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid is shorthand for constructing a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Required reports an empty required field.
func Required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SuggestionFetchError is returned when the suggestion source could not be
// reached or answered with success=false. The session stays usable in
// manual-only mode.
type SuggestionFetchError struct {
	Err error
}

func (e *SuggestionFetchError) Error() string {
	return fmt.Sprintf("fetch suggestions: %v", e.Err)
}

func (e *SuggestionFetchError) Unwrap() error { return e.Err }

// ExportError is returned when rendering, printing or sharing an assembled
// document failed. The document itself is untouched and may be exported
// again.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
