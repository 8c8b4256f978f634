// Package local implements storage.Driver against the OS file system,
// sandboxed to a root directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
)

// Driver is a sandboxed file-system storage driver. All paths are resolved
// relative to Root and may not escape it.
type Driver struct {
	root string
}

// NewDriver creates a local storage driver rooted at dir. The directory is
// created if it does not exist.
func NewDriver(dir string) (*Driver, error) {
	if dir == "" {
		return nil, errors.New("storage root directory is required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root %s: %w", abs, err)
	}

	return &Driver{root: abs}, nil
}

// Root returns the absolute sandbox root directory.
func (d *Driver) Root() string {
	return d.root
}

// Read returns the full contents of the file at path.
func (d *Driver) Read(_ context.Context, path string) ([]byte, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.NotFoundError{Path: path}
		}
		return nil, storage.PersistenceError{Op: "read", Path: path, Err: err}
	}

	return data, nil
}

// Write atomically replaces the contents of the file at path by writing to a
// temp file in the same directory and renaming it over the target.
func (d *Driver) Write(_ context.Context, path string, data []byte) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return storage.PersistenceError{Op: "write", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), filepath.Base(full)+".tmp-*")
	if err != nil {
		return storage.PersistenceError{Op: "write", Path: path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return storage.PersistenceError{Op: "write", Path: path, Err: err}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return storage.PersistenceError{Op: "write", Path: path, Err: err}
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return storage.PersistenceError{Op: "write", Path: path, Err: err}
	}

	return nil
}

// Exists reports whether a file exists at path.
func (d *Driver) Exists(_ context.Context, path string) (bool, error) {
	full, err := d.resolve(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, storage.PersistenceError{Op: "read", Path: path, Err: err}
}

// Remove deletes the file at path. Removing an absent file is a no-op.
func (d *Driver) Remove(_ context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storage.PersistenceError{Op: "write", Path: path, Err: err}
	}

	return nil
}

// MkdirAll creates the directory at path along with any parents.
func (d *Driver) MkdirAll(_ context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(full, 0o755); err != nil {
		return storage.PersistenceError{Op: "write", Path: path, Err: err}
	}

	return nil
}

// resolve joins path onto the sandbox root and rejects escapes.
func (d *Driver) resolve(path string) (string, error) {
	full := filepath.Join(d.root, filepath.Clean("/"+path))
	if full != d.root && !strings.HasPrefix(full, d.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}

var _ storage.Driver = (*Driver)(nil)
