package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateServer is returned when adding a server whose name is
	// already registered.
	ErrDuplicateServer = errors.New("server name already exists")

	// ErrServerNotFound is returned by Delete and SetDefault for names
	// that are not in the store.
	ErrServerNotFound = errors.New("server not found")
)

// PersistenceError reports a failed write of the store document. The
// in-memory state is rolled back before it is returned, so a failed save is
// never observable as success.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist server store %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
