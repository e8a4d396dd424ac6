package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

// Writer appends named entries to a compressed tar container.
type Writer struct {
	dst     *trackedWriter
	zw      io.WriteCloser
	tw      *tar.Writer
	modTime time.Time
	names   map[string]struct{}
	closed  bool
}

// NewWriter wraps w with codec's compressor and a tar multiplexer.
func NewWriter(w io.Writer, codec Codec) (*Writer, error) {
	if codec == nil {
		codec = DefaultCodec
	}
	dst := &trackedWriter{w: w}
	zw, err := codec.NewWriter(dst)
	if err != nil {
		return nil, newError("open "+codec.Name(), "", dst.err, err)
	}
	return &Writer{
		dst:     dst,
		zw:      zw,
		tw:      tar.NewWriter(zw),
		modTime: time.Now().UTC().Truncate(time.Second),
		names:   make(map[string]struct{}),
	}, nil
}

// WriteEntry appends a regular file of exactly size bytes read from src.
// A source that is shorter or longer than size fails the entry.
func (w *Writer) WriteEntry(name string, size int64, src io.Reader) error {
	if w.closed {
		return ErrClosed
	}
	clean, err := CleanPath(name)
	if err != nil {
		return &Error{Op: "write", Path: name, Kind: ErrFormat, Err: err}
	}
	if _, dup := w.names[clean]; dup {
		return &Error{Op: "write", Path: clean, Kind: ErrFormat, Err: errors.New("duplicate entry")}
	}
	w.names[clean] = struct{}{}

	hdr := &tar.Header{
		Name:     clean,
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     size,
		ModTime:  w.modTime,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return newError("write header", clean, w.dst.err, err)
	}

	in := &trackedReader{r: src}
	n, err := io.CopyN(w.tw, in, size)
	if err != nil {
		if in.err != nil {
			return fmt.Errorf("read source for %s: %w", clean, in.err)
		}
		if err == io.EOF {
			return &Error{Op: "write", Path: clean, Kind: ErrFormat,
				Err: fmt.Errorf("source ended after %d of %d bytes", n, size)}
		}
		return newError("write", clean, w.dst.err, err)
	}

	var probe [1]byte
	if m, _ := io.ReadFull(in, probe[:]); m > 0 {
		return &Error{Op: "write", Path: clean, Kind: ErrFormat,
			Err: fmt.Errorf("source longer than declared size %d", size)}
	}
	if in.err != nil {
		return fmt.Errorf("read source for %s: %w", clean, in.err)
	}
	return nil
}

// WriteBytes appends data as a regular file.
func (w *Writer) WriteBytes(name string, data []byte) error {
	return w.WriteEntry(name, int64(len(data)), bytes.NewReader(data))
}

// Close writes the tar trailer and the compression trailer. It does not
// close the destination stream.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.tw.Close(); err != nil {
		_ = w.zw.Close()
		return newError("close", "", w.dst.err, err)
	}
	if err := w.zw.Close(); err != nil {
		return newError("close", "", w.dst.err, err)
	}
	return nil
}
