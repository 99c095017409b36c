package pricing

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every ValidationError via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError reports a caller contract violation on a named input.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FieldName returns the offending input name.
func (e *ValidationError) FieldName() string {
	if e == nil {
		return ""
	}
	return e.Field
}

// Is makes errors.Is(err, ErrInvalidInput) true for validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func indexed(i int, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		return &ValidationError{Field: fmt.Sprintf("lines[%d].%s", i, ve.Field), Reason: ve.Reason}
	}
	return err
}
