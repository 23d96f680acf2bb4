package familyrepo

import "errors"

var (
	// ErrNotFound indicates the requested family or membership does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyMember indicates a membership already exists for the (user, family) pair.
	ErrAlreadyMember = errors.New("membership already exists")

	// ErrConflict indicates a concurrent writer won: a version mismatch, a serialization
	// failure or a busy database. Callers may retry the whole transaction.
	ErrConflict = errors.New("concurrent modification")
)
