package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/weightlog/internal/paths"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

// backingFile is the single file a store owns.
type backingFile struct {
	name     string
	resolver paths.Resolver
	fsys     afero.Fs
}

func (f *backingFile) path() (string, error) {
	if f.resolver == nil {
		return "", fmt.Errorf("%w: no path resolver for %s", types.ErrDirectoryUnavailable, f.name)
	}
	return f.resolver.Resolve(f.name)
}

// read returns the file contents, or nil data when the file does not exist.
func (f *backingFile) read() ([]byte, string, error) {
	path, err := f.path()
	if err != nil {
		return nil, "", err
	}
	data, err := afero.ReadFile(f.fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, path, nil
	}
	if err != nil {
		return nil, path, &types.PersistenceError{Op: types.OpRead, Path: path, Err: err}
	}
	return data, path, nil
}

// write replaces the file atomically using the temp-file, fsync, rename
// pattern. Readers see either the old contents or the new, never a mix.
func (f *backingFile) write(data []byte) error {
	path, err := f.path()
	if err != nil {
		return err
	}
	if err := writeAtomic(f.fsys, path, data); err != nil {
		return &types.PersistenceError{Op: types.OpWrite, Path: path, Err: err}
	}
	return nil
}

// remove deletes the file. A file that is already gone is not an error.
func (f *backingFile) remove() error {
	path, err := f.path()
	if err != nil {
		return err
	}
	if err := f.fsys.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &types.PersistenceError{Op: types.OpRemove, Path: path, Err: err}
	}
	return nil
}

func writeAtomic(fsys afero.Fs, path string, data []byte) error {
	tmp, err := afero.TempFile(fsys, filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
