package store

import "errors"

var (
	// ErrNotFound covers both a missing required file and a row lookup
	// that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrMalformed means the file exists but its header is missing
	// required columns. Per-line parse failures inside the history store
	// are recovered locally and never surface as this error.
	ErrMalformed = errors.New("malformed file")

	// ErrMultipleMatches signals duplicate ids in the post table, a
	// corruption state the caller must decide how to handle.
	ErrMultipleMatches = errors.New("multiple rows share id")
)
