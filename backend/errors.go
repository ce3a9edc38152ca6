package backend

import (
	"errors"
	"fmt"
)

// Errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrUnknownTable = errors.New("unknown table")
	ErrClosed       = errors.New("session already committed")
	ErrShuttingDown = errors.New("backend is shutting down")
)

// Error reports a failure code from the native backend.
type Error struct {
	Op    string
	Table string
	Code  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: %s on table %s failed with code %d", e.Op, e.Table, e.Code)
}

// IsBackendError reports whether err carries a native backend failure code.
func IsBackendError(err error) bool {
	var be *Error
	return errors.As(err, &be)
}
