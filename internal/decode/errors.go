package decode

import "fmt"

// ErrorKind classifies terminal decode failures.
type ErrorKind int

const (
	// UnsupportedFormat means no strategy recognizes the file extension.
	UnsupportedFormat ErrorKind = iota
	// CorruptOrUnreadable means the file exists but every applicable
	// strategy failed on its contents.
	CorruptOrUnreadable
	// MissingFile means the path no longer exists at decode time.
	MissingFile
	// ResourceExhausted means the output buffer could not be allocated.
	ResourceExhausted
)

// String returns the string representation of an error kind.
func (k ErrorKind) String() string {
	switch k {
	case UnsupportedFormat:
		return "unsupported format"
	case CorruptOrUnreadable:
		return "corrupt or unreadable"
	case MissingFile:
		return "missing file"
	case ResourceExhausted:
		return "resource exhausted"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// DecodeError is the only error type that crosses the decoder boundary.
// Library-level faults are caught and wrapped; Err retains the last
// underlying cause for logging.
type DecodeError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Path, e.Kind)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newError(path string, kind ErrorKind, err error) *DecodeError {
	return &DecodeError{Path: path, Kind: kind, Err: err}
}
