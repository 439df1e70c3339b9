// Package apperr defines the error kinds surfaced by every service in the
// marketplace core. Handlers match on these with errors.Is to pick a status
// code; services wrap them with context via fmt.Errorf("...: %w", kind).
package apperr

import "errors"

var (
	// ErrNotFound: a referenced cart, order, product or line does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState: the operation is not legal in the current state
	// (empty-cart checkout, cancel after delivery, non-positive quantity).
	ErrInvalidState = errors.New("invalid state")
	// ErrForbidden: the caller does not own the target resource.
	ErrForbidden = errors.New("forbidden")
	// ErrStorage: the underlying persistence layer failed. May be retried
	// by the caller; never retried here.
	ErrStorage = errors.New("storage failure")
)
