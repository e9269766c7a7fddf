// Package backend builds a storage.Transport from configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/fruitsalade/s3file/pkg/storage"
	"github.com/fruitsalade/s3file/pkg/storage/local"
	"github.com/fruitsalade/s3file/pkg/storage/minio"
	s3backend "github.com/fruitsalade/s3file/pkg/storage/s3"
)

// Backend types.
const (
	TypeS3    = "s3"
	TypeMinio = "minio"
	TypeLocal = "local"
)

// Config selects and configures a transport. Each transport built from a
// Config owns its own client and credentials.
type Config struct {
	Type string // s3 (default), minio, local

	Endpoint  string
	Region    string
	Profile   string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// LocalRoot is the object tree root for the local backend.
	LocalRoot string

	// Fs is the caller's local filesystem (and the object tree for the
	// local backend). Defaults to the OS filesystem.
	Fs afero.Fs
}

// New creates a Transport for cfg.Type.
func New(ctx context.Context, cfg Config) (storage.Transport, error) {
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	switch cfg.Type {
	case "", TypeS3:
		t, err := s3backend.New(ctx, s3backend.Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			Profile:   cfg.Profile,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Local:     fsys,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case TypeMinio:
		t, err := minio.New(minio.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
			Local:     fsys,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case TypeLocal:
		t, err := local.New(local.Config{
			RootPath:   cfg.LocalRoot,
			CreateDirs: true,
			Store:      fsys,
			Local:      fsys,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend type: %s", storage.ErrInvalidArgument, cfg.Type)
	}
}
