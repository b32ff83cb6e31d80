package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a field validation failure.
type ErrorCode string

// Field validation failure codes.
const (
	CodeMissingField  ErrorCode = "missing_field"
	CodeInvalidNumber ErrorCode = "invalid_number"
)

// Sentinels matched by errors.Is against the typed field errors.
var (
	ErrMissingField  = errors.New("missing field")
	ErrInvalidNumber = errors.New("invalid number")
)

// FieldError is implemented by every per-field validation failure.
type FieldError interface {
	error
	FieldName() string
	Code() ErrorCode
}

// MissingFieldError reports a required text field that was not provided.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: required field missing", e.Field)
}

// FieldName returns the wire name of the missing field.
func (e *MissingFieldError) FieldName() string { return e.Field }

// Code returns CodeMissingField.
func (e *MissingFieldError) Code() ErrorCode { return CodeMissingField }

// Is matches ErrMissingField.
func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// InvalidNumberError reports a provided value that is not a finite number.
type InvalidNumberError struct {
	Field string
	Raw   string
}

func (e *InvalidNumberError) Error() string {
	return fmt.Sprintf("%s: %q is not a finite number", e.Field, e.Raw)
}

// FieldName returns the wire name of the malformed field.
func (e *InvalidNumberError) FieldName() string { return e.Field }

// Code returns CodeInvalidNumber.
func (e *InvalidNumberError) Code() ErrorCode { return CodeInvalidNumber }

// Is matches ErrInvalidNumber.
func (e *InvalidNumberError) Is(target error) bool { return target == ErrInvalidNumber }

// ValidationError collects every field failure found in one record, in field
// declaration order.
type ValidationError struct {
	Record   EntityType
	Problems []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Error())
	}
	return fmt.Sprintf("invalid %s: %s", e.Record, strings.Join(parts, "; "))
}

// Unwrap exposes the individual field errors to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p
	}
	return out
}

// Fields returns the names of the failing fields.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.FieldName()
	}
	return out
}

// Problem returns the failure recorded for field, if any.
func (e *ValidationError) Problem(field string) (FieldError, bool) {
	for _, p := range e.Problems {
		if p.FieldName() == field {
			return p, true
		}
	}
	return nil, false
}

// ErrNotFound is returned by stores when a record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrDuplicate is returned by stores when a record ID is already taken.
type ErrDuplicate struct {
	Entity EntityType
	ID     string
}

func (e ErrDuplicate) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}
