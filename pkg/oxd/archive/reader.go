package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"
)

// Reader streams a compressed tar container entry by entry. Nothing beyond
// the current entry is buffered.
type Reader struct {
	src *trackedReader
	zr  io.ReadCloser
	tr  *tar.Reader
	cur *Entry
	err error
}

// Entry is one regular file of the archive. It is valid until the next call
// to Reader.Next; reading it afterwards returns ErrEntryStale.
type Entry struct {
	Path string
	Size int64

	r     *Reader
	stale bool
}

// NewReader wraps r with codec's decompressor and a tar demultiplexer.
func NewReader(r io.Reader, codec Codec) (*Reader, error) {
	if codec == nil {
		codec = DefaultCodec
	}
	src := &trackedReader{r: r}
	zr, err := codec.NewReader(src)
	if err != nil {
		return nil, newError("open "+codec.Name(), "", src.err, err)
	}
	return &Reader{
		src: src,
		zr:  zr,
		tr:  tar.NewReader(zr),
	}, nil
}

// Next advances to the next regular file. It returns io.EOF after the last
// entry. Directory entries are skipped; links and devices are rejected.
func (r *Reader) Next() (*Entry, error) {
	if r.cur != nil {
		r.cur.stale = true
		r.cur = nil
	}
	if r.err != nil {
		return nil, r.err
	}

	for {
		hdr, err := r.tr.Next()
		if err == io.EOF {
			r.err = io.EOF
			return nil, io.EOF
		}
		if err != nil {
			r.err = newError("next", "", r.src.err, err)
			return nil, r.err
		}

		switch hdr.Typeflag {
		case tar.TypeDir, tar.TypeXGlobalHeader:
			continue
		case tar.TypeReg:
		default:
			r.err = &Error{Op: "next", Path: hdr.Name, Kind: ErrFormat,
				Err: fmt.Errorf("unsupported entry type %q", hdr.Typeflag)}
			return nil, r.err
		}

		name, err := CleanPath(hdr.Name)
		if err != nil {
			r.err = &Error{Op: "next", Path: hdr.Name, Kind: ErrFormat, Err: err}
			return nil, r.err
		}

		r.cur = &Entry{Path: name, Size: hdr.Size, r: r}
		return r.cur, nil
	}
}

// Entries iterates the remaining entries. Iteration stops after the first
// error, which is yielded with a nil entry.
func (r *Reader) Entries() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			e, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the decompressor. It does not close the source stream.
func (r *Reader) Close() error {
	if r.cur != nil {
		r.cur.stale = true
		r.cur = nil
	}
	return r.zr.Close()
}

func (e *Entry) Read(p []byte) (int, error) {
	if e.stale {
		return 0, ErrEntryStale
	}
	n, err := e.r.tr.Read(p)
	if err != nil && err != io.EOF {
		werr := newError("read", e.Path, e.r.src.err, err)
		e.r.err = werr
		return n, werr
	}
	return n, err
}

// Ext returns the entry extension without the leading dot.
func (e *Entry) Ext() string {
	return strings.TrimPrefix(path.Ext(e.Path), ".")
}

// CleanPath normalises an entry name and rejects absolute or escaping paths.
func CleanPath(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty entry name")
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", fmt.Errorf("invalid entry path: %s", name)
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid entry path: %s", name)
	}
	return clean, nil
}
