// Package domain holds the error taxonomy shared by the time-tracking modules.
package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the time-tracking engine. Every engine error wraps
// exactly one of these so callers can branch with errors.Is.
var (
	// ErrConflict - invariant violation (duplicate running session)
	ErrConflict = errors.New("conflict")
	// ErrValidation - missing/ambiguous service reference, malformed interval
	ErrValidation = errors.New("validation failed")
	// ErrState - transition attempted from an invalid state
	ErrState = errors.New("invalid state")
	// ErrNotFound - unknown technician, session, activity or order
	ErrNotFound = errors.New("not found")
)

// Conflictf returns an error of kind ErrConflict.
func Conflictf(format string, args ...interface{}) error {
	return wrapKind(ErrConflict, format, args...)
}

// Validationf returns an error of kind ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return wrapKind(ErrValidation, format, args...)
}

// Statef returns an error of kind ErrState.
func Statef(format string, args ...interface{}) error {
	return wrapKind(ErrState, format, args...)
}

// NotFoundf returns an error of kind ErrNotFound.
func NotFoundf(format string, args ...interface{}) error {
	return wrapKind(ErrNotFound, format, args...)
}

func wrapKind(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// KindOf returns the engine error kind wrapped by err, or nil for
// infrastructure errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrConflict, ErrValidation, ErrState, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
