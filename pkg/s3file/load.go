package s3file

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"

	"github.com/fruitsalade/s3file/internal/logging"
	"github.com/fruitsalade/s3file/pkg/storage"
)

// CachePath returns the local cache file for a remote path.
func (c *Client) CachePath(path string) string {
	return filepath.Join(c.cacheDir, filepath.FromSlash(path))
}

// Load returns the whole content of the object at path: []byte for
// ModeBinaryRead, string for ModeTextRead. The object is downloaded to
// the cache when force is set or no cached copy exists; the cached copy
// is kept for later loads.
func (c *Client) Load(ctx context.Context, path string, mode Mode, force bool) (any, error) {
	if !mode.Readable() {
		return nil, fmt.Errorf("%w: load needs a read mode, got %s", ErrInvalidMode, mode)
	}

	data, err := c.load(ctx, path, force)
	if err != nil {
		return nil, err
	}
	if mode.Text() {
		text, err := unicode.UTF8.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return string(text), nil
	}
	return data, nil
}

// LoadBytes is Load in binary mode.
func (c *Client) LoadBytes(ctx context.Context, path string, force bool) ([]byte, error) {
	v, err := c.Load(ctx, path, ModeBinaryRead, force)
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// LoadText is Load in text mode.
func (c *Client) LoadText(ctx context.Context, path string, force bool) (string, error) {
	v, err := c.Load(ctx, path, ModeTextRead, force)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) load(ctx context.Context, path string, force bool) ([]byte, error) {
	local := c.CachePath(path)
	if err := c.fs.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir for %s: %w", path, err)
	}

	cached, err := afero.Exists(c.fs, local)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", local, err)
	}

	log := logging.WithContext(ctx)
	if force || !cached {
		if err := c.transport.DownloadFile(ctx, path, local); err != nil {
			return nil, err
		}
		log.Debug("cached remote object", zap.String("path", path), zap.String("local", local))
	} else {
		log.Debug("using cached object", zap.String("path", path), zap.String("local", local))
	}

	return afero.ReadFile(c.fs, local)
}

// Save writes content to the cache file for path and uploads it.
// content may be string or *strings.Builder for text, []byte or
// *bytes.Buffer for binary; anything else, including a nil pointer, fails
// with ErrUnsupportedType before any I/O.
func (c *Client) Save(ctx context.Context, path string, content any) error {
	var data []byte
	switch v := content.(type) {
	case string:
		data = []byte(v)
	case *strings.Builder:
		if v == nil {
			return fmt.Errorf("%w: nil %T", ErrUnsupportedType, content)
		}
		data = []byte(v.String())
	case []byte:
		data = v
	case *bytes.Buffer:
		if v == nil {
			return fmt.Errorf("%w: nil %T", ErrUnsupportedType, content)
		}
		data = v.Bytes()
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, content)
	}

	local := c.CachePath(path)
	if _, err := storage.WriteFileAtomic(c.fs, local, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := c.engine.UploadFile(ctx, local, path); err != nil {
		return err
	}

	logging.WithContext(ctx).Debug("saved object",
		zap.String("path", path),
		zap.String("local", local),
		zap.Int("size", len(data)))
	return nil
}
