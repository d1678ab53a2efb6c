package store

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when an update targets a row that no longer exists.
	ErrRecordNotFound = errors.New("store: record not found")

	// ErrDuplicateRecords is returned by FindActive when more than one row
	// exists for a (user, service provider) pair.
	ErrDuplicateRecords = errors.New("store: more than one record for key")

	// ErrConflict is returned when a concurrent writer modified the same key
	// before the transaction could commit.
	ErrConflict = errors.New("store: concurrent modification")

	// ErrInvalidPath is returned for a database path the SQLite driver cannot address.
	ErrInvalidPath = errors.New("store: invalid database path")
)

// PersistenceError wraps any failure raised by a backend: connectivity loss,
// constraint violation or statement failure.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: failed to %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Backend: backend, Op: op, Err: err}
}
