// Package errors provides common domain error types for mbud.
//
// This package defines sentinel errors for common domain conditions like "not found"
// or "validation error" that can be used across all packages, plus the structured
// JobError used by the diarization pipeline. Using typed errors enables consistent
// error handling patterns with errors.Is() checks.
//
// Usage:
//
//	import mberrors "github.com/meetingbuddy/mbud/pkg/errors"
//
//	// Return a domain error
//	return nil, mberrors.ErrNotFound
//
//	// Check for domain errors
//	if mberrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate label).
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrPersistence indicates the storage layer rejected a read or write.
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether any error in err's chain is ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPersistence reports whether any error in err's chain is ErrPersistence.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
