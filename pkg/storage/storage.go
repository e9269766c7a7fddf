// Package storage defines the Transport interface for remote object stores.
//
// Remote paths follow the "container/key" convention of package remotepath.
// Implementations live in the s3, minio and local subpackages; package backend
// selects one from configuration.
package storage

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"
)

var (
	// ErrNotFound is returned when a remote object (or local source) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for arguments a transport or caller cannot act on.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Object describes one listed remote object. Size is never zero: zero-byte
// objects are directory placeholders and are dropped by List.
type Object struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Transport is the interface for remote object store access.
// Local files named by UploadFile and DownloadFile are resolved on the
// transport's own local filesystem.
type Transport interface {
	// Stream opens the object at path for reading. The caller closes it.
	Stream(ctx context.Context, path string) (io.ReadCloser, error)

	// UploadFile copies one local file to one object, overwriting it.
	UploadFile(ctx context.Context, localPath, remotePath string) error

	// DownloadFile copies one object to localPath, creating parent directories.
	DownloadFile(ctx context.Context, remotePath, localPath string) error

	// List lazily enumerates every non-empty object whose path starts with
	// prefix. Pages are fetched as the sequence is consumed. A failure is
	// yielded once, as the last element.
	List(ctx context.Context, prefix string) iter.Seq2[Object, error]

	// Type returns the backend type identifier ("s3", "minio", "local").
	Type() string

	// Close releases any resources held by the transport.
	Close() error
}

// Collect drains a listing into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Object, error]) ([]Object, error) {
	var objects []Object
	for obj, err := range seq {
		if err != nil {
			return objects, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}
