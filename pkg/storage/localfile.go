package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// OpenLocal opens a regular local file for upload and returns its size.
// A missing file yields an error matching both ErrNotFound and fs.ErrNotExist.
func OpenLocal(fsys afero.Fs, path string) (afero.File, int64, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("open %s: %w: %w", path, ErrNotFound, err)
		}
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %s is not a regular file", ErrInvalidArgument, path)
	}
	return f, info.Size(), nil
}

// WriteFileAtomic writes r to path on fsys. Parent directories are created,
// content goes to a temporary sibling first and is renamed into place, so a
// failed transfer never leaves a partial file at path.
func WriteFileAtomic(fsys afero.Fs, path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create dirs for %s: %w", path, err)
	}

	tmp, err := afero.TempFile(fsys, dir, ".s3file-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName)
		return 0, fmt.Errorf("close temp for %s: %w", path, err)
	}

	if err := fsys.Rename(tmpName, path); err != nil {
		fsys.Remove(tmpName)
		return 0, fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return written, nil
}
