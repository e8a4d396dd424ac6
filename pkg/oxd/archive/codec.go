package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Codec is the single compression filter wrapped around the tar stream.
type Codec interface {
	Name() string
	NewReader(r io.Reader) (io.ReadCloser, error)
	NewWriter(w io.Writer) (io.WriteCloser, error)
}

// Built-in codecs. XZ is the format written by the desktop and web editors.
var (
	XZ   Codec = xzCodec{}
	Zstd Codec = zstdCodec{}
	Gzip Codec = gzipCodec{}
	LZ4  Codec = lz4Codec{}
)

// DefaultCodec is used when no codec is configured.
var DefaultCodec = XZ

// CodecByName returns the built-in codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "xz":
		return XZ, nil
	case "zstd", "zst":
		return Zstd, nil
	case "gzip", "gz":
		return Gzip, nil
	case "lz4":
		return LZ4, nil
	default:
		return nil, fmt.Errorf("unknown archive codec: %q", name)
	}
}

type xzCodec struct{}

func (xzCodec) Name() string { return "xz" }

func (xzCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(zr), nil
}

func (xzCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func (zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
}

type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

func (gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func (lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}
