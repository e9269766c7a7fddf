package s3file

import (
	"errors"
	"fmt"

	"github.com/fruitsalade/s3file/pkg/storage"
)

var (
	// ErrInvalidMode is returned for an unknown mode, or a write mode where
	// only read modes are accepted.
	ErrInvalidMode = fmt.Errorf("%w: invalid mode", storage.ErrInvalidArgument)

	// ErrUnsupportedType is returned by Save for content that is neither
	// text nor binary.
	ErrUnsupportedType = fmt.Errorf("%w: unsupported content type", storage.ErrInvalidArgument)

	// ErrTypeMismatch is returned when text is exchanged with a binary
	// handle or bytes with a text handle.
	ErrTypeMismatch = fmt.Errorf("%w: content type does not match mode", storage.ErrInvalidArgument)

	ErrNotReadable = errors.New("file is not readable")
	ErrNotWritable = errors.New("file is not writable")
	ErrNotOpen     = errors.New("file is not open")
	ErrClosed      = errors.New("file already closed")
)
