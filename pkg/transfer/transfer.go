// Package transfer copies single files and whole directory trees between the
// local filesystem and a remote object store, preserving relative structure.
//
// Transfers are sequential. The first failure aborts the operation; files
// transferred before it are left in place.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/fruitsalade/s3file/internal/logging"
	"github.com/fruitsalade/s3file/pkg/remotepath"
	"github.com/fruitsalade/s3file/pkg/storage"
)

// Result summarizes a transfer.
type Result struct {
	Files int
	Bytes int64
}

// Engine moves files through a storage.Transport.
type Engine struct {
	transport storage.Transport
	fs        afero.Fs
}

// Option configures an Engine.
type Option func(*Engine)

// WithFs sets the local filesystem. It must be the filesystem the
// transport resolves local paths on.
func WithFs(fsys afero.Fs) Option {
	return func(e *Engine) {
		e.fs = fsys
	}
}

// New creates an Engine over t.
func New(t storage.Transport, opts ...Option) *Engine {
	e := &Engine{transport: t, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UploadFile uploads one local file to remotePath.
func (e *Engine) UploadFile(ctx context.Context, localPath, remotePath string) error {
	return e.transport.UploadFile(ctx, localPath, remotePath)
}

// Upload uploads localPath to remotePath. A regular file is uploaded as is.
// A directory is walked recursively and each regular file beneath it is
// uploaded to remotePath joined with its relative slash path; symlinks,
// devices and other irregular entries are skipped.
func (e *Engine) Upload(ctx context.Context, localPath, remotePath string) (Result, error) {
	root, err := filepath.Abs(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", localPath, err)
	}

	info, err := e.fs.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s: %w: %w", storage.ErrInvalidArgument, root, storage.ErrNotFound, err)
		}
		return Result{}, fmt.Errorf("stat %s: %w", root, err)
	}

	switch {
	case info.Mode().IsRegular():
		if err := e.UploadFile(ctx, root, remotePath); err != nil {
			return Result{}, err
		}
		return Result{Files: 1, Bytes: info.Size()}, nil
	case info.IsDir():
		return e.uploadTree(ctx, root, remotePath)
	default:
		return Result{}, fmt.Errorf("%w: %s is neither a file nor a directory", storage.ErrInvalidArgument, root)
	}
}

// uploadTree walks each entry of root separately so that a root reached
// through a symlink is still descended; entries below it are lstat'ed.
func (e *Engine) uploadTree(ctx context.Context, root, remotePath string) (Result, error) {
	entries, err := afero.ReadDir(e.fs, root)
	if err != nil {
		return Result{}, fmt.Errorf("read dir %s: %w", root, err)
	}

	var res Result
	visit := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		dst := remotepath.JoinKey(remotePath, filepath.ToSlash(rel))
		if err := e.UploadFile(ctx, path, dst); err != nil {
			return err
		}
		res.Files++
		res.Bytes += info.Size()
		return nil
	}
	for _, entry := range entries {
		if err = afero.Walk(e.fs, filepath.Join(root, entry.Name()), visit); err != nil {
			break
		}
	}
	if err != nil {
		return res, err
	}

	logging.WithContext(ctx).Info("uploaded tree",
		zap.String("local", root),
		zap.String("remote", remotePath),
		zap.Int("files", res.Files),
		zap.Int64("bytes", res.Bytes))
	return res, nil
}

// Download downloads every object listed under remotePath. An object whose
// path equals remotePath is written to localPath itself; any other object is
// written beneath localPath at its path relative to remotePath.
//
// Matching is by string prefix: "bucket/foo" also matches "bucket/foobar".
// The relative path is the listed path with the prefix and at most one
// following "/" removed, so "bucket/foobar/b" lands at localPath/bar/b
// rather than losing a character to a separator that is not there.
func (e *Engine) Download(ctx context.Context, remotePath, localPath string) (Result, error) {
	root, err := filepath.Abs(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", localPath, err)
	}

	var res Result
	for obj, err := range e.transport.List(ctx, remotePath) {
		if err != nil {
			return res, err
		}

		dst := root
		if rel := relativeKey(remotePath, obj.Path); rel != "" {
			dst = filepath.Join(root, filepath.FromSlash(rel))
		}
		if err := e.transport.DownloadFile(ctx, obj.Path, dst); err != nil {
			return res, err
		}
		res.Files++
		res.Bytes += obj.Size
	}

	logging.WithContext(ctx).Info("downloaded tree",
		zap.String("remote", remotePath),
		zap.String("local", root),
		zap.Int("files", res.Files),
		zap.Int64("bytes", res.Bytes))
	return res, nil
}

// relativeKey strips prefix and the separator following it from path.
func relativeKey(prefix, path string) string {
	rel := strings.TrimPrefix(path, prefix)
	return strings.TrimPrefix(rel, remotepath.Separator)
}
