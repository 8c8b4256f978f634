// Package inmemory implements storage.Driver using an in-memory map.
// It exists for tests and throwaway pipelines; nothing survives the process.
package inmemory

import (
	"context"
	"sync"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
)

// Driver implements storage.Driver backed by a map of path -> contents.
type Driver struct {
	mu    sync.RWMutex
	files map[string][]byte

	// FailWrites causes every Write to return a PersistenceError. Tests use
	// this to exercise the "persistence failure during append" paths.
	FailWrites bool
}

// NewDriver creates a new in-memory storage driver.
func NewDriver() *Driver {
	return &Driver{
		files: make(map[string][]byte),
	}
}

// Read returns the contents stored at path.
func (d *Driver) Read(_ context.Context, path string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, ok := d.files[path]
	if !ok {
		return nil, storage.NotFoundError{Path: path}
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write replaces the contents stored at path.
func (d *Driver) Write(_ context.Context, path string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailWrites {
		return storage.PersistenceError{Op: "write", Path: path, Err: errSimulated}
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	d.files[path] = stored
	return nil
}

// Exists reports whether contents are stored at path.
func (d *Driver) Exists(_ context.Context, path string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.files[path]
	return ok, nil
}

// Remove deletes the contents stored at path.
func (d *Driver) Remove(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.files, path)
	return nil
}

// MkdirAll is a no-op for the in-memory driver.
func (d *Driver) MkdirAll(_ context.Context, _ string) error {
	return nil
}

// Corrupt overwrites the raw stored bytes at path. Tests use this to tamper
// with persisted documents.
func (d *Driver) Corrupt(path string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = data
}

var _ storage.Driver = (*Driver)(nil)

var errSimulated = simulatedError{}

type simulatedError struct{}

func (simulatedError) Error() string { return "simulated write failure" }
