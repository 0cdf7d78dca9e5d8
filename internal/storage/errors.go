package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the database could not be read or written.
	// Callers on the recommendation path degrade instead of failing.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRecorded is returned when an interaction outcome was already set.
	ErrAlreadyRecorded = errors.New("outcome already recorded")
)

// UnavailableError wraps a driver-level failure for a storage operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage unavailable: %s", e.Op)
	}
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is reports ErrUnavailable so callers can use errors.Is without
// knowing the concrete driver error.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}
