package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a create would violate the
	// unique-email invariant.
	ErrDuplicateEmail = errors.New("email already registered")
)
