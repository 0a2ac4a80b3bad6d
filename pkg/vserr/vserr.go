// Package vserr defines the sentinel error kinds shared across vecstore's
// core packages. Callers should compare with errors.Is, since call sites
// wrap these with additional context via fmt.Errorf("...: %w", ...).
package vserr

import "errors"

// Common errors
var (
	// ErrNotFound indicates a library id absent from the store.
	ErrNotFound = errors.New("not found")
	// ErrBadDimension indicates a vector whose length does not equal the
	// configured embedding dimension.
	ErrBadDimension = errors.New("bad dimension")
	// ErrBadPredicate indicates a Condition with zero or more than one
	// operator populated.
	ErrBadPredicate = errors.New("bad predicate")
	// ErrNotBuilt indicates a search before any index build, or a missing
	// store-level chunk lookup for a library.
	ErrNotBuilt = errors.New("not built")
	// ErrIOError indicates a snapshot read/write failure.
	ErrIOError = errors.New("io error")
	// ErrInvariant signals corruption: a duplicate chunk id in a supposedly
	// unique list. Should be unreachable.
	ErrInvariant = errors.New("invariant violation")
)
