package archive_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whizsid/openxd-sub000/pkg/oxd/archive"
)

type testEntry struct {
	path string
	data string
}

func buildArchive(t *testing.T, codec archive.Codec, entries ...testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := archive.NewWriter(&buf, codec)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.WriteBytes(e.path, []byte(e.data)))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readAll(t *testing.T, r *archive.Reader) []testEntry {
	t.Helper()
	var got []testEntry
	for e, err := range r.Entries() {
		require.NoError(t, err)
		data, err := io.ReadAll(e)
		require.NoError(t, err)
		got = append(got, testEntry{path: e.Path, data: string(data)})
	}
	return got
}

func TestRoundTripAllCodecs(t *testing.T) {
	entries := []testEntry{
		{path: "main.oxd", data: "<oxd version=\"0.0.1\"></oxd>"},
		{path: "assets/img.jpg", data: strings.Repeat("x", 10)},
		{path: "empty.gif", data: ""},
	}

	for _, codec := range []archive.Codec{archive.XZ, archive.Zstd, archive.Gzip, archive.LZ4} {
		t.Run(codec.Name(), func(t *testing.T) {
			data := buildArchive(t, codec, entries...)

			r, err := archive.NewReader(bytes.NewReader(data), codec)
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, entries, readAll(t, r))
		})
	}
}

func TestReaderNextReturnsEOF(t *testing.T) {
	data := buildArchive(t, archive.Gzip, testEntry{path: "a.jpg", data: "a"})
	r, err := archive.NewReader(bytes.NewReader(data), archive.Gzip)
	require.NoError(t, err)

	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", e.Path)
	assert.Equal(t, "jpg", e.Ext())
	assert.Equal(t, int64(1), e.Size)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestEntryStaleAfterNext(t *testing.T) {
	data := buildArchive(t, archive.Gzip,
		testEntry{path: "a.jpg", data: "aaaa"},
		testEntry{path: "b.jpg", data: "bbbb"},
	)
	r, err := archive.NewReader(bytes.NewReader(data), archive.Gzip)
	require.NoError(t, err)

	first, err := r.Next()
	require.NoError(t, err)

	second, err := r.Next()
	require.NoError(t, err)

	_, err = first.Read(make([]byte, 4))
	assert.ErrorIs(t, err, archive.ErrEntryStale)

	data2, err := io.ReadAll(second)
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(data2))
}

func TestReaderRejectsGarbage(t *testing.T) {
	for _, codec := range []archive.Codec{archive.XZ, archive.Zstd, archive.Gzip} {
		t.Run(codec.Name(), func(t *testing.T) {
			garbage := bytes.NewReader([]byte("definitely not a compressed tar stream"))
			r, err := archive.NewReader(garbage, codec)
			if err == nil {
				_, err = r.Next()
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, archive.ErrFormat)
			assert.NotErrorIs(t, err, archive.ErrTransport)
		})
	}
}

func TestReaderTruncatedArchive(t *testing.T) {
	data := buildArchive(t, archive.Gzip, testEntry{path: "a.jpg", data: strings.Repeat("z", 4096)})
	truncated := data[:len(data)/2]

	r, err := archive.NewReader(bytes.NewReader(truncated), archive.Gzip)
	require.NoError(t, err)

	var readErr error
	for e, err := range r.Entries() {
		if err != nil {
			readErr = err
			break
		}
		if _, err := io.ReadAll(e); err != nil {
			readErr = err
			break
		}
	}
	require.Error(t, readErr)
	assert.ErrorIs(t, readErr, archive.ErrFormat)
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestReaderTransportFailure(t *testing.T) {
	data := buildArchive(t, archive.Gzip, testEntry{path: "a.jpg", data: strings.Repeat("q", 8192)})
	boom := errors.New("connection reset")
	src := &failingReader{data: data[:20], err: boom}

	r, err := archive.NewReader(src, archive.Gzip)
	if err == nil {
		var e *archive.Entry
		e, err = r.Next()
		if err == nil {
			_, err = io.ReadAll(e)
		}
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, archive.ErrTransport)
	assert.ErrorIs(t, err, boom)
}

func TestWriterRejectsBadEntries(t *testing.T) {
	newWriter := func(t *testing.T) *archive.Writer {
		w, err := archive.NewWriter(io.Discard, archive.Gzip)
		require.NoError(t, err)
		return w
	}

	t.Run("short source", func(t *testing.T) {
		err := newWriter(t).WriteEntry("short.jpg", 10, strings.NewReader("abc"))
		assert.ErrorIs(t, err, archive.ErrFormat)
	})

	t.Run("escaping path", func(t *testing.T) {
		err := newWriter(t).WriteBytes("../evil.jpg", []byte("x"))
		assert.ErrorIs(t, err, archive.ErrFormat)
	})

	t.Run("duplicate path", func(t *testing.T) {
		w := newWriter(t)
		require.NoError(t, w.WriteBytes("one.jpg", []byte("x")))
		err := w.WriteBytes("./one.jpg", []byte("y"))
		assert.ErrorIs(t, err, archive.ErrFormat)
	})
}

func TestWriterRejectsLongSource(t *testing.T) {
	var buf bytes.Buffer
	w, err := archive.NewWriter(&buf, archive.Gzip)
	require.NoError(t, err)

	err = w.WriteEntry("long.jpg", 2, strings.NewReader("abcdef"))
	assert.ErrorIs(t, err, archive.ErrFormat)
}

func TestWriterClosed(t *testing.T) {
	var buf bytes.Buffer
	w, err := archive.NewWriter(&buf, archive.Zstd)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.WriteBytes("late.jpg", []byte("x"))
	assert.ErrorIs(t, err, archive.ErrClosed)
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "main.oxd", want: "main.oxd"},
		{in: "./assets/a.jpg", want: "assets/a.jpg"},
		{in: "assets//b.gif", want: "assets/b.gif"},
		{in: "/etc/passwd", wantErr: true},
		{in: "../up.jpg", wantErr: true},
		{in: "a/../../up.jpg", wantErr: true},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := archive.CleanPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "xz"},
		{"xz", "xz"},
		{"ZSTD", "zstd"},
		{"gz", "gzip"},
		{"lz4", "lz4"},
	}
	for _, tt := range tests {
		c, err := archive.CodecByName(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.Name())
	}

	_, err := archive.CodecByName("bzip2")
	assert.Error(t, err)
}
