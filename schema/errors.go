package schema

import (
	"errors"
	"fmt"
)

// Errors.
var (
	ErrUnknownField      = errors.New("unknown field")
	ErrInvalidTableName  = errors.New("table name must start with a letter and may only contain alphanumeric and `_-` characters")
	ErrDuplicateField    = errors.New("duplicate field column")
	ErrNoFields          = errors.New("table must have at least one field")
	ErrNotRegistered     = errors.New("table not registered")
	ErrAlreadyRegistered = errors.New("table already registered")
)

// TypeMismatchError is returned when a value does not match a Field's
// declared kind, or when a Field of another table is used.
type TypeMismatchError struct {
	Column   string
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %s: expected %s, got %s", e.Column, e.Expected, e.Got)
}

// ValidationError is returned when a Field's validation predicate rejects a
// value.
type ValidationError struct {
	Column string
	Value  interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: value %v failed validation", e.Column, e.Value)
}

// DecodeError is returned when a raw value cannot be decoded to a Field's
// kind.
type DecodeError struct {
	Column string
	Raw    string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("field %s: cannot decode %q: %s", e.Column, e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
