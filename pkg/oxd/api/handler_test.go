package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whizsid/openxd-sub000/pkg/oxd"
	"github.com/whizsid/openxd-sub000/pkg/oxd/archive"
	"github.com/whizsid/openxd-sub000/pkg/oxd/repo/memory"
	memorystorage "github.com/whizsid/openxd-sub000/pkg/oxd/storage/memory"
)

const posterDocument = `<oxd version="0.0.1"><name>Poster</name><artboards><artboard name="Main" width="100" height="50"><image name="photo" x="1" y="2" width="10" height="5"><source>img.jpg</source></image></artboard></artboards></oxd>`

// setupProjectHandlerTest creates a ProjectHandler backed by in-memory stores
func setupProjectHandlerTest(t *testing.T) (http.Handler, oxd.Service, *memorystorage.Backend) {
	t.Helper()
	blob := memorystorage.New()
	svc, err := oxd.New(
		oxd.WithRepository(memory.New()),
		oxd.WithContentStore(oxd.NewContentStore("memory", blob)),
		oxd.WithEventSink(oxd.NewNoopEventSink()),
	)
	require.NoError(t, err)

	return NewProjectHandler(svc, nil).Routes(), svc, blob
}

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := archive.NewWriter(&buf, archive.DefaultCodec)
	require.NoError(t, err)
	for name, data := range files {
		require.NoError(t, w.WriteBytes(name, []byte(data)))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func importRequest(t *testing.T, fields map[string]string, archiveData []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if archiveData != nil {
		fw, err := mw.CreateFormFile("file", "project.oxd")
		require.NoError(t, err)
		_, err = fw.Write(archiveData)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/projects/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func importPoster(t *testing.T, router http.Handler) ImportResponse {
	t.Helper()
	data := buildArchive(t, map[string]string{"main.oxd": posterDocument, "img.jpg": "0123456789"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, importRequest(t, map[string]string{
		"project_name": "Summer Poster",
		"owner_id":     uuid.New().String(),
	}, data))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestProjectHandler_Import_Success(t *testing.T) {
	router, _, blob := setupProjectHandlerTest(t)

	resp := importPoster(t, router)

	assert.Equal(t, "Summer Poster", resp.Project.Name)
	assert.Equal(t, "summer-poster", resp.Project.Slug)
	require.Contains(t, resp.Assets, "img.jpg")
	assert.Equal(t, []string{resp.Assets["img.jpg"]}, blob.Keys())

	req := httptest.NewRequest(http.MethodGet, "/documents/"+resp.Project.DocumentID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, w.Body.String(), "<source>"+resp.Assets["img.jpg"]+"</source>")
	assert.NotContains(t, w.Body.String(), "<source>img.jpg</source>")
}

func TestProjectHandler_Import_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]string
		wantStatus int
	}{
		{"unsupported asset", map[string]string{"main.oxd": posterDocument, "notes.txt": "hi"}, http.StatusUnsupportedMediaType},
		{"no document", map[string]string{"img.jpg": "0123456789"}, http.StatusUnsupportedMediaType},
		{"malformed document", map[string]string{"main.oxd": "<oxd"}, http.StatusUnprocessableEntity},
		{"missing asset", map[string]string{"main.oxd": posterDocument}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, blob := setupProjectHandlerTest(t)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, importRequest(t, nil, buildArchive(t, tt.files)))

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Empty(t, blob.Keys())
		})
	}
}

func TestProjectHandler_Import_BadRequest(t *testing.T) {
	router, _, _ := setupProjectHandlerTest(t)
	data := buildArchive(t, map[string]string{"main.oxd": posterDocument, "img.jpg": "0123456789"})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/projects/import", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/octet-stream")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, importRequest(t, map[string]string{"project_name": "x"}, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid owner", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, importRequest(t, map[string]string{"owner_id": "nope"}, data))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not an archive", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, importRequest(t, nil, []byte("plain text")))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestProjectHandler_Import_TooLarge(t *testing.T) {
	blob := memorystorage.New()
	svc, err := oxd.New(
		oxd.WithRepository(memory.New()),
		oxd.WithContentStore(oxd.NewContentStore("memory", blob)),
	)
	require.NoError(t, err)
	router := NewProjectHandler(svc, nil).WithMaxUploadBytes(2048).Routes()

	noise := make([]byte, 64<<10)
	_, err = rand.Read(noise)
	require.NoError(t, err)
	data := buildArchive(t, map[string]string{"main.oxd": posterDocument, "img.jpg": string(noise)})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, importRequest(t, nil, data))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Empty(t, blob.Keys())
}

func TestProjectHandler_Export(t *testing.T) {
	router, svc, _ := setupProjectHandlerTest(t)
	imported := importPoster(t, router)

	for _, path := range []string{
		"/documents/" + imported.Project.DocumentID + "/export",
		"/projects/" + imported.Project.ID + "/export",
	} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, ArchiveContentType, w.Header().Get("Content-Type"))
			assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

			result, err := svc.Import(context.Background(), w.Body, oxd.ImportRequest{})
			require.NoError(t, err)
			assert.Equal(t, "Poster", result.Project.Name)
			assert.Len(t, result.Assets, 1)
		})
	}
}

func TestProjectHandler_NotFound(t *testing.T) {
	router, _, _ := setupProjectHandlerTest(t)
	id := uuid.New().String()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/documents/" + id, http.StatusNotFound},
		{http.MethodGet, "/documents/" + id + "/export", http.StatusNotFound},
		{http.MethodPost, "/documents/" + id + "/clone", http.StatusNotFound},
		{http.MethodGet, "/projects/" + id, http.StatusNotFound},
		{http.MethodGet, "/projects/" + id + "/export", http.StatusNotFound},
		{http.MethodGet, "/documents/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/projects/not-a-uuid/export", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			assert.Empty(t, w.Header().Get("Content-Disposition"))
		})
	}
}

func TestProjectHandler_CreateAndList(t *testing.T) {
	router, _, _ := setupProjectHandlerTest(t)
	owner := uuid.New()

	body, err := json.Marshal(CreateProjectRequest{Name: "Blank Canvas", OwnerID: owner.String()})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Blank Canvas", created.Name)
	assert.Equal(t, owner.String(), created.OwnerID)

	req = httptest.NewRequest(http.MethodGet, "/projects/"+created.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/projects?owner_id="+owner.String(), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/projects?owner_id=bad", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectHandler_CreateProject_InvalidBody(t *testing.T) {
	router, _, _ := setupProjectHandlerTest(t)

	for _, body := range []string{"{", `{"name":"x","owner_id":"nope"}`} {
		req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestProjectHandler_Clone(t *testing.T) {
	router, _, blob := setupProjectHandlerTest(t)
	imported := importPoster(t, router)

	req := httptest.NewRequest(http.MethodPost, "/documents/"+imported.Project.DocumentID+"/clone", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp CloneResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, imported.Project.DocumentID, resp.DocumentID)
	require.Len(t, resp.Assets, 1)
	assert.NotEqual(t, imported.Assets["img.jpg"], resp.Assets[0])
	assert.Len(t, blob.Keys(), 2)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&oxd.PipelineError{Op: "export", Kind: oxd.ErrDocumentNotFound}, http.StatusNotFound},
		{&oxd.PipelineError{Op: "export", Kind: oxd.ErrProjectNotFound}, http.StatusNotFound},
		{&oxd.PipelineError{Op: "import", Kind: oxd.ErrUnsupportedAsset}, http.StatusUnsupportedMediaType},
		{&oxd.PipelineError{Op: "import", Kind: oxd.ErrUnsupportedFile}, http.StatusUnsupportedMediaType},
		{&oxd.PipelineError{Op: "import", Kind: oxd.ErrFormat}, http.StatusUnprocessableEntity},
		{&oxd.PipelineError{Op: "import", Kind: oxd.ErrTransport}, http.StatusBadRequest},
		{&oxd.PipelineError{Op: "import", Kind: oxd.ErrStorage}, http.StatusInternalServerError},
		{&oxd.PipelineError{Op: "import", Kind: oxd.ErrPersistence}, http.StatusInternalServerError},
		{fmt.Errorf("read: %w", &http.MaxBytesError{Limit: 1}), http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestStreamWriter(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &streamWriter{w: w, filename: "doc.oxd"}
	assert.False(t, sw.started)

	_, err := io.WriteString(sw, "abc")
	require.NoError(t, err)
	_, err = io.WriteString(sw, "def")
	require.NoError(t, err)

	assert.True(t, sw.started)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="doc.oxd"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "abcdef", w.Body.String())
}
