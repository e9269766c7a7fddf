// Package minio provides a storage.Transport for MinIO and other
// S3-compatible endpoints using minio-go.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/fruitsalade/s3file/internal/logging"
	"github.com/fruitsalade/s3file/internal/metrics"
	"github.com/fruitsalade/s3file/pkg/remotepath"
	"github.com/fruitsalade/s3file/pkg/storage"
)

const backendType = "minio"

// Config holds MinIO connection settings.
type Config struct {
	Endpoint  string // host[:port], optionally with an http:// or https:// scheme
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool

	// Local is the filesystem for UploadFile sources and DownloadFile targets.
	Local afero.Fs
}

// Transport implements storage.Transport using minio-go.
type Transport struct {
	client *minio.Client
	local  afero.Fs
}

var _ storage.Transport = (*Transport)(nil)

// New creates a new MinIO transport.
func New(cfg Config) (*Transport, error) {
	host, secure, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: minio credentials must be provided", storage.ErrInvalidArgument)
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	local := cfg.Local
	if local == nil {
		local = afero.NewOsFs()
	}
	return &Transport{client: client, local: local}, nil
}

// normalizeEndpoint strips any scheme from endpoint; an explicit scheme
// overrides useSSL.
func normalizeEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, useSSL = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint, useSSL = strings.TrimPrefix(endpoint, "http://"), false
	}
	endpoint = strings.TrimSuffix(strings.TrimPrefix(endpoint, "//"), "/")
	if endpoint == "" {
		return "", false, fmt.Errorf("%w: minio endpoint must be provided", storage.ErrInvalidArgument)
	}
	return endpoint, useSSL, nil
}

func record(op string, start time.Time, err error) {
	metrics.RecordStorageOperation(backendType, op, time.Since(start), err == nil)
}

// Stream opens an object for reading. The object is stat'ed first so that a
// missing key fails here rather than on the first read.
func (t *Transport) Stream(ctx context.Context, path string) (io.ReadCloser, error) {
	start := time.Now()
	obj, err := t.get(ctx, path)
	record("get_object", start, err)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx).Debug("minio stream object", zap.String("path", path))
	return obj, nil
}

func (t *Transport) get(ctx context.Context, path string) (*minio.Object, error) {
	bucket, key := remotepath.Split(path)
	if key == "" {
		return nil, fmt.Errorf("%w: %q does not name an object", storage.ErrInvalidArgument, path)
	}
	obj, err := t.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrapErr("get object", path, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, wrapErr("stat object", path, err)
	}
	return obj, nil
}

// UploadFile uploads one local file, overwriting any existing object.
func (t *Transport) UploadFile(ctx context.Context, localPath, remotePath string) error {
	start := time.Now()
	size, err := t.put(ctx, localPath, remotePath)
	record("put_object", start, err)
	if err != nil {
		return err
	}
	metrics.RecordBytes(metrics.DirectionUpload, size)
	logging.WithContext(ctx).Debug("minio put object",
		zap.String("local", localPath),
		zap.String("path", remotePath),
		zap.Int64("size", size))
	return nil
}

func (t *Transport) put(ctx context.Context, localPath, remotePath string) (int64, error) {
	bucket, key := remotepath.Split(remotePath)
	if key == "" {
		return 0, fmt.Errorf("%w: %q does not name an object", storage.ErrInvalidArgument, remotePath)
	}

	f, size, err := storage.OpenLocal(t.local, localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := t.client.PutObject(ctx, bucket, key, f, size, minio.PutObjectOptions{}); err != nil {
		return 0, wrapErr("put object", remotePath, err)
	}
	return size, nil
}

// DownloadFile downloads one object to localPath.
func (t *Transport) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	start := time.Now()
	size, err := t.download(ctx, remotePath, localPath)
	record("download", start, err)
	if err != nil {
		return err
	}
	metrics.RecordBytes(metrics.DirectionDownload, size)
	logging.WithContext(ctx).Debug("minio download object",
		zap.String("path", remotePath),
		zap.String("local", localPath),
		zap.Int64("size", size))
	return nil
}

func (t *Transport) download(ctx context.Context, remotePath, localPath string) (int64, error) {
	obj, err := t.get(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	defer obj.Close()
	return storage.WriteFileAtomic(t.local, localPath, obj)
}

// List streams a recursive listing. Breaking out of the sequence cancels the
// underlying listing goroutine.
func (t *Transport) List(ctx context.Context, prefix string) iter.Seq2[storage.Object, error] {
	return func(yield func(storage.Object, error) bool) {
		bucket, keyPrefix := remotepath.Split(prefix)
		listCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		start := time.Now()
		ch := t.client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
			Prefix:    keyPrefix,
			Recursive: true,
		})
		err := drain(bucket, prefix, ch, yield)
		record("list_objects", start, err)
	}
}

// drain converts listing results into descriptors, dropping empty objects.
// It returns the error it yielded, if any.
func drain(bucket, prefix string, ch <-chan minio.ObjectInfo, yield func(storage.Object, error) bool) error {
	for info := range ch {
		if info.Err != nil {
			err := wrapErr("list objects", prefix, info.Err)
			yield(storage.Object{}, err)
			return err
		}
		if info.Size == 0 {
			continue
		}
		obj := storage.Object{
			Path:         remotepath.Join(bucket, info.Key),
			Size:         info.Size,
			LastModified: info.LastModified,
		}
		if !yield(obj, nil) {
			return nil
		}
	}
	return nil
}

// Type returns "minio".
func (t *Transport) Type() string { return backendType }

// Close is a no-op for MinIO transports.
func (t *Transport) Close() error { return nil }

func wrapErr(op, path string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %s: %w: %w", op, path, storage.ErrNotFound, err)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return resp.StatusCode == http.StatusNotFound
}
