package storage

import "fmt"

// NotFoundError is returned when a file doesn't exist in the store.
type NotFoundError struct {
	Path string
}

func (e NotFoundError) Error() string {
	if e.Path == "" {
		return "file not found"
	}

	return "file not found: " + e.Path
}

// PersistenceError wraps an underlying I/O failure while reading or writing a
// snapshot document. It is surfaced, never swallowed: silent loss here would
// corrupt the audit and rollback guarantees built on top of the store.
type PersistenceError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e PersistenceError) Unwrap() error {
	return e.Err
}
