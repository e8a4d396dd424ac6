package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whizsid/openxd-sub000/pkg/oxd"
	"github.com/whizsid/openxd-sub000/pkg/oxd/api"
	"github.com/whizsid/openxd-sub000/pkg/oxd/repo/memory"
	memorystorage "github.com/whizsid/openxd-sub000/pkg/oxd/storage/memory"
)

func newTestRouter(t *testing.T, logs *bytes.Buffer, apiKey func(http.Handler) http.Handler) chi.Router {
	t.Helper()
	svc, err := oxd.New(
		oxd.WithRepository(memory.New()),
		oxd.WithContentStore(oxd.NewContentStore("memory", memorystorage.New())),
	)
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(logs, nil))
	r := chi.NewRouter()
	mountAPI(r, api.NewProjectHandler(svc, logger), logger, apiKey, "https://design.example.com")
	return r
}

func passThrough(next http.Handler) http.Handler { return next }

func TestMountAPI_LogsRequests(t *testing.T) {
	var logs bytes.Buffer
	r := newTestRouter(t, &logs, passThrough)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+uuid.NewString(), nil)
	req.Header.Set("Origin", "https://design.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	requestID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, requestID)
	assert.Equal(t, "https://design.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var e map[string]any
		require.NoError(t, json.Unmarshal(line, &e))
		if e["msg"] == "request" {
			entry = e
		}
	}
	require.NotNil(t, entry, "no access log line in %s", logs.String())
	assert.Equal(t, requestID, entry["request_id"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
}

func TestMountAPI_APIKeyGuardsRoutes(t *testing.T) {
	var logs bytes.Buffer
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	r := newTestRouter(t, &logs, deny)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects?owner_id="+uuid.NewString(), nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, logs.String(), `"status":401`)
}

func TestNewHTTPServer(t *testing.T) {
	srv := newHTTPServer("9090", http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
}
