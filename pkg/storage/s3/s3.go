// Package s3 provides a storage.Transport for AWS S3 and S3-compatible services.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/fruitsalade/s3file/internal/logging"
	"github.com/fruitsalade/s3file/internal/metrics"
	"github.com/fruitsalade/s3file/pkg/remotepath"
	"github.com/fruitsalade/s3file/pkg/storage"
)

const backendType = "s3"

// Config holds S3 connection settings. Zero values fall back to the SDK's
// default credential chain and endpoint resolution.
type Config struct {
	Endpoint  string // custom endpoint; enables path-style addressing
	Region    string
	Profile   string // shared config profile
	AccessKey string
	SecretKey string

	// Local is the filesystem for UploadFile sources and DownloadFile targets.
	Local afero.Fs
}

// API is the subset of the S3 client used by Transport.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Transport implements storage.Transport using S3.
type Transport struct {
	client API
	local  afero.Fs
}

var _ storage.Transport = (*Transport)(nil)

// New creates a new S3 transport. Credentials, region and profile are bound
// to this transport only.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.Local), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API, local afero.Fs) *Transport {
	if local == nil {
		local = afero.NewOsFs()
	}
	return &Transport{client: client, local: local}
}

func record(op string, start time.Time, err error) {
	metrics.RecordStorageOperation(backendType, op, time.Since(start), err == nil)
}

// Stream opens an object for reading.
func (t *Transport) Stream(ctx context.Context, path string) (io.ReadCloser, error) {
	start := time.Now()
	body, err := t.get(ctx, path)
	record("get_object", start, err)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx).Debug("S3 stream object", zap.String("path", path))
	return body, nil
}

func (t *Transport) get(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key := remotepath.Split(path)
	if key == "" {
		return nil, fmt.Errorf("%w: %q does not name an object", storage.ErrInvalidArgument, path)
	}
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapErr("get object", path, err)
	}
	return out.Body, nil
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
	logging.WithContext(ctx).Debug("S3 put object",
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

	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
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
	logging.WithContext(ctx).Debug("S3 download object",
		zap.String("path", remotePath),
		zap.String("local", localPath),
		zap.Int64("size", size))
	return nil
}

func (t *Transport) download(ctx context.Context, remotePath, localPath string) (int64, error) {
	body, err := t.get(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return storage.WriteFileAtomic(t.local, localPath, body)
}

// List pages through ListObjectsV2 as the sequence is consumed.
func (t *Transport) List(ctx context.Context, prefix string) iter.Seq2[storage.Object, error] {
	return func(yield func(storage.Object, error) bool) {
		bucket, keyPrefix := remotepath.Split(prefix)
		p := s3.NewListObjectsV2Paginator(t.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
			Prefix: aws.String(keyPrefix),
		})

		for p.HasMorePages() {
			start := time.Now()
			page, err := p.NextPage(ctx)
			record("list_objects", start, err)
			if err != nil {
				yield(storage.Object{}, wrapErr("list objects", prefix, err))
				return
			}

			for _, obj := range page.Contents {
				size := aws.ToInt64(obj.Size)
				if size == 0 {
					continue
				}
				o := storage.Object{
					Path:         remotepath.Join(bucket, aws.ToString(obj.Key)),
					Size:         size,
					LastModified: aws.ToTime(obj.LastModified),
				}
				if !yield(o, nil) {
					return
				}
			}
		}
	}
}

// Type returns "s3".
func (t *Transport) Type() string { return backendType }

// Close is a no-op for S3 transports.
func (t *Transport) Close() error { return nil }

func wrapErr(op, path string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %s: %w: %w", op, path, storage.ErrNotFound, err)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
