package s3file

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/fruitsalade/s3file/internal/logging"
	"github.com/fruitsalade/s3file/internal/metrics"
)

type fileState uint8

const (
	stateUnopened fileState = iota
	stateActive
	stateClosed
)

// File is a handle on one remote object.
//
// Read modes stream the object directly from the transport. Write modes
// buffer into a local staging file that is uploaded and removed on Close.
// A File is opened at most once and cannot be reopened after Close.
//
// Two write handles on the same remote path and staging directory share a
// staging file; they are not coordinated and the last Close wins.
type File struct {
	client  *Client
	path    string
	mode    Mode
	staging string

	mu     sync.Mutex
	state  fileState
	ctx    context.Context
	stream io.ReadCloser
	reader *bufio.Reader
	local  afero.File
}

// stagingName maps a remote path to a flat, filesystem-safe file name.
func stagingName(path string) string {
	return hex.EncodeToString([]byte(path))
}

// Path returns the remote path.
func (f *File) Path() string { return f.path }

// Mode returns the access mode.
func (f *File) Mode() Mode { return f.mode }

// StagingPath returns the local staging file used by write modes.
func (f *File) StagingPath() string { return f.staging }

// Open binds the handle. Read modes open a stream on the remote object;
// write modes create or truncate the staging file. ctx is used by every
// later operation on the handle, including the upload in Close.
func (f *File) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case stateActive:
		return errors.New("file already open")
	case stateClosed:
		return ErrClosed
	}

	if f.mode.Readable() {
		stream, err := f.client.transport.Stream(ctx, f.path)
		if err != nil {
			return err
		}
		var r io.Reader = stream
		if f.mode.Text() {
			r = transform.NewReader(stream, unicode.UTF8.NewDecoder())
		}
		f.stream = stream
		f.reader = bufio.NewReader(r)
	} else {
		fsys := f.client.fs
		if err := fsys.MkdirAll(filepath.Dir(f.staging), 0755); err != nil {
			return err
		}
		local, err := fsys.OpenFile(f.staging, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		f.local = local
		metrics.StagingFileOpened()
	}

	f.ctx = ctx
	f.state = stateActive
	logging.WithContext(ctx).Debug("opened remote file",
		zap.String("path", f.path),
		zap.Stringer("mode", f.mode))
	return nil
}

func (f *File) checkState() error {
	switch f.state {
	case stateUnopened:
		return ErrNotOpen
	case stateClosed:
		return ErrClosed
	}
	return nil
}

func (f *File) checkRead() error {
	if err := f.checkState(); err != nil {
		return err
	}
	if !f.mode.Readable() {
		return ErrNotReadable
	}
	return nil
}

func (f *File) checkWrite(text bool) error {
	if err := f.checkState(); err != nil {
		return err
	}
	if !f.mode.Writable() {
		return ErrNotWritable
	}
	if f.mode.Text() != text {
		return ErrTypeMismatch
	}
	return nil
}

// Read implements io.Reader. In text mode it yields UTF-8 with invalid
// sequences replaced by U+FFFD.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkRead(); err != nil {
		return 0, err
	}
	return f.reader.Read(p)
}

// ReadBytes reads up to n bytes from a binary handle, or everything that
// remains if n is negative. At end of stream it returns io.EOF.
func (f *File) ReadBytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkRead(); err != nil {
		return nil, err
	}
	if f.mode.Text() {
		return nil, ErrTypeMismatch
	}

	if n < 0 {
		return io.ReadAll(f.reader)
	}
	buf := make([]byte, n)
	k, err := io.ReadFull(f.reader, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return buf[:k], err
}

// ReadString reads up to n characters from a text handle, or everything
// that remains if n is negative. At end of stream it returns io.EOF.
func (f *File) ReadString(n int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkRead(); err != nil {
		return "", err
	}
	if !f.mode.Text() {
		return "", ErrTypeMismatch
	}

	if n < 0 {
		data, err := io.ReadAll(f.reader)
		return string(data), err
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		r, _, err := f.reader.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				break
			}
			return sb.String(), err
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}

// Write appends p to the staging file of a binary write handle.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkWrite(false); err != nil {
		return 0, err
	}
	return f.local.Write(p)
}

// WriteString appends s to the staging file of a text write handle.
func (f *File) WriteString(s string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkWrite(true); err != nil {
		return 0, err
	}
	return f.local.WriteString(s)
}

// Close releases the handle. For write modes the staging file is closed,
// uploaded to the remote path and then removed whether or not the upload
// succeeded. A failure to remove it is logged, not returned.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkState(); err != nil {
		return err
	}
	f.state = stateClosed

	if f.mode.Readable() {
		f.reader = nil
		return f.stream.Close()
	}

	defer metrics.StagingFileReleased()
	log := logging.WithContext(f.ctx)

	err := f.local.Close()
	if err == nil {
		err = f.client.engine.UploadFile(f.ctx, f.staging, f.path)
	}

	if rmErr := f.client.fs.Remove(f.staging); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		log.Warn("failed to remove staging file",
			logging.String("staging", f.staging),
			logging.Err(rmErr))
	}

	if err != nil {
		return err
	}
	log.Debug("uploaded staging file",
		zap.String("path", f.path),
		zap.String("staging", f.staging))
	return nil
}
