package s3file

import "fmt"

// Mode is the access mode of a File. The zero value is ModeBinaryRead.
type Mode uint8

const (
	ModeBinaryRead Mode = iota
	ModeTextRead
	ModeBinaryWrite
	ModeTextWrite
)

// ParseMode parses "r", "rb", "w" or "wb".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "rb":
		return ModeBinaryRead, nil
	case "r":
		return ModeTextRead, nil
	case "wb":
		return ModeBinaryWrite, nil
	case "w":
		return ModeTextWrite, nil
	default:
		return 0, fmt.Errorf("%w: %q (want r, rb, w or wb)", ErrInvalidMode, s)
	}
}

// String returns the short form accepted by ParseMode.
func (m Mode) String() string {
	switch m {
	case ModeBinaryRead:
		return "rb"
	case ModeTextRead:
		return "r"
	case ModeBinaryWrite:
		return "wb"
	case ModeTextWrite:
		return "w"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

func (m Mode) valid() bool {
	return m <= ModeTextWrite
}

// Readable reports whether m is a read mode.
func (m Mode) Readable() bool {
	return m == ModeBinaryRead || m == ModeTextRead
}

// Writable reports whether m is a write mode.
func (m Mode) Writable() bool {
	return m == ModeBinaryWrite || m == ModeTextWrite
}

// Text reports whether m exchanges strings rather than bytes.
func (m Mode) Text() bool {
	return m == ModeTextRead || m == ModeTextWrite
}
