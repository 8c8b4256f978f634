// Package storage provides the file-system adapter used by the pipeline for
// durable snapshots.
//
// The Driver interface is intentionally small: whole-document reads and
// writes of paths relative to a sandbox root. Both the vector snapshot and
// the audit log are single JSON documents rewritten on every mutation, so
// implementers only need atomic whole-file semantics, not streaming I/O.
package storage

import "context"

// Driver is an abstract file-system adapter scoped to a sandbox directory.
// Paths are relative to the sandbox root; implementations must reject paths
// that escape it.
type Driver interface {
	// Read returns the full contents of the file at path.
	// A missing file returns NotFoundError.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write replaces the full contents of the file at path, creating it if
	// needed. Writes must be atomic: a crash mid-write may lose the new
	// contents but never corrupts the old ones.
	Write(ctx context.Context, path string, data []byte) error

	// Exists reports whether a file exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Remove deletes the file at path. Removing an absent file is a no-op.
	Remove(ctx context.Context, path string) error

	// MkdirAll creates the directory at path along with any parents.
	MkdirAll(ctx context.Context, path string) error
}
