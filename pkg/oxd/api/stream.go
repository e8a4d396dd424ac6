package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

const maxFieldBytes = 4 << 10

// streamWriter defers the response headers until the first archive byte so
// that failures before any output can still be reported with a status code.
type streamWriter struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (s *streamWriter) Write(p []byte) (int, error) {
	if !s.started {
		s.started = true
		h := s.w.Header()
		h.Set("Content-Type", ArchiveContentType)
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename))
		s.w.WriteHeader(http.StatusOK)
	}
	return s.w.Write(p)
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxFieldBytes {
		return "", fmt.Errorf("field %s exceeds %d bytes", part.FormName(), maxFieldBytes)
	}
	return string(data), nil
}
