// Package s3file reads and writes remote objects as local files.
//
// A Client wraps a storage.Transport. Open returns a File handle: read modes
// stream the object, write modes stage content on local disk and upload it on
// Close. Load and Save move whole objects through a persistent local cache,
// and Upload and Download copy single files or directory trees.
package s3file

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/fruitsalade/s3file/pkg/storage"
	"github.com/fruitsalade/s3file/pkg/transfer"
)

// Defaults for staging and cache directories.
const (
	DefaultStagingDir = "/tmp/s3"
	DefaultCacheDir   = "~/Downloads"
)

// Client gives file-like access to a remote object store.
type Client struct {
	transport  storage.Transport
	engine     *transfer.Engine
	fs         afero.Fs
	stagingDir string
	cacheDir   string
}

// Option configures a Client.
type Option func(*Client)

// WithStagingDir sets the directory holding staging files of write handles.
func WithStagingDir(dir string) Option {
	return func(c *Client) {
		c.stagingDir = dir
	}
}

// WithCacheDir sets the directory Load and Save keep object copies in.
func WithCacheDir(dir string) Option {
	return func(c *Client) {
		c.cacheDir = dir
	}
}

// WithFs sets the local filesystem. It must be the filesystem the
// transport resolves local paths on.
func WithFs(fsys afero.Fs) Option {
	return func(c *Client) {
		c.fs = fsys
	}
}

// NewClient creates a Client over t. A leading "~" in the staging or cache
// directory is expanded to the user's home directory.
func NewClient(t storage.Transport, opts ...Option) *Client {
	c := &Client{
		transport:  t,
		fs:         afero.NewOsFs(),
		stagingDir: DefaultStagingDir,
		cacheDir:   DefaultCacheDir,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.stagingDir = expandHome(c.stagingDir)
	c.cacheDir = expandHome(c.cacheDir)
	c.engine = transfer.New(t, transfer.WithFs(c.fs))
	return c
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Transport returns the underlying transport.
func (c *Client) Transport() storage.Transport { return c.transport }

// StagingDir returns the staging directory.
func (c *Client) StagingDir() string { return c.stagingDir }

// CacheDir returns the cache directory.
func (c *Client) CacheDir() string { return c.cacheDir }

// NewFile returns an unopened handle on path. It validates mode and
// performs no I/O.
func (c *Client) NewFile(path string, mode Mode) (*File, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	return &File{
		client:  c,
		path:    path,
		mode:    mode,
		staging: filepath.Join(c.stagingDir, stagingName(path)),
	}, nil
}

// Open returns an open handle on path. The caller must Close it.
func (c *Client) Open(ctx context.Context, path string, mode Mode) (*File, error) {
	f, err := c.NewFile(path, mode)
	if err != nil {
		return nil, err
	}
	if err := f.Open(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// With opens path, calls fn with the handle and closes it exactly once,
// also when fn fails or panics. For write modes the staged content is
// uploaded in every case. Errors from fn and Close are combined.
func (c *Client) With(ctx context.Context, path string, mode Mode, fn func(*File) error) (err error) {
	f, err := c.Open(ctx, path, mode)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return fn(f)
}

// Upload copies a local file or directory tree to remotePath.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) (transfer.Result, error) {
	return c.engine.Upload(ctx, localPath, remotePath)
}

// Download copies every object under remotePath to localPath.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) (transfer.Result, error) {
	return c.engine.Download(ctx, remotePath, localPath)
}

// List lazily enumerates the non-empty objects under prefix.
func (c *Client) List(ctx context.Context, prefix string) iter.Seq2[storage.Object, error] {
	return c.transport.List(ctx, prefix)
}
