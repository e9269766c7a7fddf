// Package local provides a storage.Transport backed by a directory tree.
//
// Each first-level directory under the root is a container; keys map to
// slash-separated paths beneath it. Both the object tree and the caller's local
// files are accessed through afero, so the whole transport can run in memory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/fruitsalade/s3file/internal/logging"
	"github.com/fruitsalade/s3file/internal/metrics"
	"github.com/fruitsalade/s3file/pkg/remotepath"
	"github.com/fruitsalade/s3file/pkg/storage"
)

const backendType = "local"

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string
	CreateDirs bool

	// Store holds the object tree; Local holds the caller's files.
	// Both default to the OS filesystem.
	Store afero.Fs
	Local afero.Fs
}

// Transport implements storage.Transport on a local directory tree.
type Transport struct {
	rootPath   string
	createDirs bool
	store      afero.Fs
	local      afero.Fs
}

var _ storage.Transport = (*Transport)(nil)

// New creates a new local filesystem transport.
func New(cfg Config) (*Transport, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("%w: root path is required", storage.ErrInvalidArgument)
	}
	if cfg.Store == nil {
		cfg.Store = afero.NewOsFs()
	}
	if cfg.Local == nil {
		cfg.Local = afero.NewOsFs()
	}

	info, err := cfg.Store.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := cfg.Store.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: root path %s is not a directory", storage.ErrInvalidArgument, cfg.RootPath)
	}

	return &Transport{
		rootPath:   cfg.RootPath,
		createDirs: cfg.CreateDirs,
		store:      cfg.Store,
		local:      cfg.Local,
	}, nil
}

func (t *Transport) containerDir(container string) string {
	return filepath.Join(t.rootPath, container)
}

// objectPath maps a remote path to its file in the object tree.
func (t *Transport) objectPath(path string) (string, error) {
	container, key := remotepath.Split(path)
	if container == "" || key == "" {
		return "", fmt.Errorf("%w: %q does not name an object", storage.ErrInvalidArgument, path)
	}
	dir := t.containerDir(container)
	full := filepath.Join(dir, filepath.FromSlash(key))
	if !strings.HasPrefix(full, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes its container", storage.ErrInvalidArgument, path)
	}
	return full, nil
}

func (t *Transport) record(op string, start time.Time, err error) {
	metrics.RecordStorageOperation(backendType, op, time.Since(start), err == nil)
}

// Stream opens an object for reading.
func (t *Transport) Stream(ctx context.Context, path string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := t.open(path)
	t.record("stream", start, err)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx).Debug("local stream object", zap.String("path", path))
	return rc, nil
}

func (t *Transport) open(path string) (afero.File, error) {
	full, err := t.objectPath(path)
	if err != nil {
		return nil, err
	}
	f, err := t.store.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", path, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, storage.ErrNotFound)
	}
	return f, nil
}

// UploadFile copies a local file into the object tree.
func (t *Transport) UploadFile(ctx context.Context, localPath, remotePath string) error {
	start := time.Now()
	size, err := t.upload(localPath, remotePath)
	t.record("upload", start, err)
	if err != nil {
		return err
	}
	metrics.RecordBytes(metrics.DirectionUpload, size)
	logging.WithContext(ctx).Debug("local upload object",
		zap.String("local", localPath),
		zap.String("path", remotePath),
		zap.Int64("size", size))
	return nil
}

func (t *Transport) upload(localPath, remotePath string) (int64, error) {
	full, err := t.objectPath(remotePath)
	if err != nil {
		return 0, err
	}
	if !t.createDirs {
		container, _ := remotepath.Split(remotePath)
		if ok, _ := afero.DirExists(t.store, t.containerDir(container)); !ok {
			return 0, fmt.Errorf("container %s: %w", container, storage.ErrNotFound)
		}
	}

	f, _, err := storage.OpenLocal(t.local, localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return storage.WriteFileAtomic(t.store, full, f)
}

// DownloadFile copies an object to a local file.
func (t *Transport) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	start := time.Now()
	size, err := t.download(remotePath, localPath)
	t.record("download", start, err)
	if err != nil {
		return err
	}
	metrics.RecordBytes(metrics.DirectionDownload, size)
	logging.WithContext(ctx).Debug("local download object",
		zap.String("path", remotePath),
		zap.String("local", localPath),
		zap.Int64("size", size))
	return nil
}

func (t *Transport) download(remotePath, localPath string) (int64, error) {
	f, err := t.open(remotePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return storage.WriteFileAtomic(t.local, localPath, f)
}

var errStopWalk = errors.New("stop walk")

// List walks the container directory and yields every non-empty file whose
// key starts with the prefix's key part.
func (t *Transport) List(ctx context.Context, prefix string) iter.Seq2[storage.Object, error] {
	return func(yield func(storage.Object, error) bool) {
		start := time.Now()
		container, keyPrefix := remotepath.Split(prefix)
		dir := t.containerDir(container)

		stopped := false
		err := afero.Walk(t.store, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if path == dir && errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("container %s: %w", container, storage.ErrNotFound)
				}
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path == dir {
				return nil
			}

			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)

			if info.IsDir() {
				dirKey := key + "/"
				if !strings.HasPrefix(dirKey, keyPrefix) && !strings.HasPrefix(keyPrefix, dirKey) {
					return filepath.SkipDir
				}
				return nil
			}
			if !info.Mode().IsRegular() || isTempFile(info.Name()) {
				return nil
			}
			if !strings.HasPrefix(key, keyPrefix) || info.Size() == 0 {
				return nil
			}

			obj := storage.Object{
				Path:         remotepath.Join(container, key),
				Size:         info.Size(),
				LastModified: info.ModTime(),
			}
			if !yield(obj, nil) {
				stopped = true
				return errStopWalk
			}
			return nil
		})
		if stopped {
			t.record("list", start, nil)
			return
		}
		t.record("list", start, err)
		if err != nil {
			yield(storage.Object{}, fmt.Errorf("list %s: %w", prefix, err))
		}
	}
}

func isTempFile(name string) bool {
	return strings.HasPrefix(name, ".s3file-") && strings.HasSuffix(name, ".tmp")
}

// Type returns "local".
func (t *Transport) Type() string { return backendType }

// Close is a no-op for local transports.
func (t *Transport) Close() error { return nil }
