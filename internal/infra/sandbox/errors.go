package sandbox

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed or disallowed arguments detected before any
// side effect. It is surfaced as a normal failed action result.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Detail)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Detail)
}

// NewValidationError builds a ValidationError for a named argument.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Violation marks an attempt to escape the sandbox: a path outside the
// allowlisted roots, a blocked network target, or a disallowed command.
// Like ValidationError it never aborts a run; it fails the single action.
type Violation struct {
	Rule   string // "path", "network", "command", "query", "size"
	Detail string
}

func (e *Violation) Error() string {
	return fmt.Sprintf("sandbox violation (%s): %s", e.Rule, e.Detail)
}

// NewViolation builds a Violation for the given rule set.
func NewViolation(rule, format string, args ...any) error {
	return &Violation{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// IsViolation reports whether err is a sandbox Violation.
func IsViolation(err error) bool {
	var v *Violation
	return errors.As(err, &v)
}
