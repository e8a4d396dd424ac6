package archive

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrTransport indicates the underlying byte stream failed
	ErrTransport = errors.New("archive transport failure")

	// ErrFormat indicates malformed compression or tar framing
	ErrFormat = errors.New("malformed archive")

	// ErrEntryStale indicates an entry was read after the reader moved past it
	ErrEntryStale = errors.New("archive entry already consumed")

	// ErrClosed indicates use of a closed writer
	ErrClosed = errors.New("archive writer closed")
)

// Error describes a failed archive operation. Kind is ErrTransport or ErrFormat.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("archive %s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("archive %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// trackedReader remembers the last non-EOF error of the wrapped reader so
// decoder failures can be told apart from stream failures.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

type trackedWriter struct {
	w   io.Writer
	err error
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

func newError(op, path string, streamErr, err error) *Error {
	kind := ErrFormat
	if streamErr != nil {
		kind = ErrTransport
		if !errors.Is(err, streamErr) {
			err = fmt.Errorf("%w (stream: %w)", err, streamErr)
		}
	}
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}
