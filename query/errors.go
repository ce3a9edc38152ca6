package query

import "errors"

// Errors.
var (
	ErrEmptyFilter = errors.New("where requires at least one filter")
	ErrRecordType  = errors.New("batch item is neither a record nor a raw map")
	ErrIndexRange  = errors.New("negative index or bound, or non-positive step")
	ErrOutOfRange  = errors.New("index out of range")
	ErrNotFound    = errors.New("no matching record")
)
