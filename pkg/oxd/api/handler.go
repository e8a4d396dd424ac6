package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/whizsid/openxd-sub000/pkg/oxd"
)

// DefaultMaxUploadBytes bounds a multipart archive upload.
const DefaultMaxUploadBytes int64 = 512 << 20

// ArchiveContentType is sent with exported archives.
const ArchiveContentType = "application/x-openxd"

// ProjectHandler exposes archive import/export and project operations over HTTP
type ProjectHandler struct {
	service        oxd.Service
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(service oxd.Service, logger *slog.Logger) *ProjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectHandler{
		service:        service,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// WithMaxUploadBytes overrides the upload size limit
func (h *ProjectHandler) WithMaxUploadBytes(n int64) *ProjectHandler {
	h.maxUploadBytes = n
	return h
}

// Routes returns the routes for projects and documents
func (h *ProjectHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/projects", h.CreateProject)
	r.Get("/projects", h.ListProjects)
	r.Post("/projects/import", h.ImportProject)
	r.Get("/projects/{id}", h.GetProject)
	r.Get("/projects/{id}/export", h.ExportProject)

	r.Get("/documents/{id}", h.GetDocument)
	r.Get("/documents/{id}/export", h.ExportDocument)
	r.Post("/documents/{id}/clone", h.CloneDocument)

	return r
}

// ProjectResponse is the response body for a project
type ProjectResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	OwnerID    string    `json:"owner_id"`
	DocumentID string    `json:"document_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImportResponse is the response body for an archive import
type ImportResponse struct {
	Project ProjectResponse   `json:"project"`
	Assets  map[string]string `json:"assets"`
}

// CreateProjectRequest is the request body for creating an empty project
type CreateProjectRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// CloneResponse is the response body for a cloned document
type CloneResponse struct {
	DocumentID string   `json:"document_id"`
	Assets     []string `json:"assets"`
}

func toProjectResponse(p *oxd.Project) ProjectResponse {
	return ProjectResponse{
		ID:         p.ID.String(),
		Name:       p.Name,
		Slug:       p.Slug,
		OwnerID:    p.OwnerID.String(),
		DocumentID: p.DocumentID.String(),
		CreatedAt:  p.CreatedAt,
	}
}

// ImportProject accepts a multipart archive upload and imports it as a new project
func (h *ProjectHandler) ImportProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		h.logger.Error("Invalid multipart request", "error", err)
		http.Error(w, "Expected multipart/form-data", http.StatusBadRequest)
		return
	}

	// Form fields are read until the file part, which is streamed straight
	// into the import. Fields must therefore precede the file.
	var req oxd.ImportRequest
	for {
		part, err := mr.NextPart()
		if err != nil {
			h.logger.Error("Archive file missing from upload", "error", err)
			http.Error(w, "Archive file is required", http.StatusBadRequest)
			return
		}

		switch part.FormName() {
		case "project_name":
			req.ProjectName, err = readField(part)
		case "owner_id":
			var raw string
			if raw, err = readField(part); err == nil {
				req.OwnerID, err = uuid.Parse(raw)
			}
		case "file":
			result, err := h.service.Import(r.Context(), part, req)
			part.Close()
			if err != nil {
				h.logger.Error("Failed to import archive", "error", err)
				writeError(w, err)
				return
			}

			resp := ImportResponse{
				Project: toProjectResponse(result.Project),
				Assets:  make(map[string]string, len(result.Assets)),
			}
			for path, key := range result.Assets {
				resp.Assets[string(path)] = string(key)
			}

			h.logger.Info("Archive imported", "project_id", result.Project.ID, "assets", len(result.Assets))
			render.Status(r, http.StatusCreated)
			render.JSON(w, r, resp)
			return
		}
		part.Close()

		if err != nil {
			h.logger.Error("Invalid form field", "field", part.FormName(), "error", err)
			http.Error(w, fmt.Sprintf("Invalid %s", part.FormName()), http.StatusBadRequest)
			return
		}
	}
}

// ExportDocument streams a document and its assets as an archive
func (h *ProjectHandler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "document")
	if !ok {
		return
	}

	sw := &streamWriter{w: w, filename: id.String() + ".oxd"}
	if err := h.service.Export(r.Context(), sw, id); err != nil {
		h.exportFailed(w, sw, "document_id", id, err)
		return
	}
	h.logger.Info("Document exported", "document_id", id)
}

// ExportProject streams the document of a project as an archive
func (h *ProjectHandler) ExportProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "project")
	if !ok {
		return
	}

	sw := &streamWriter{w: w, filename: id.String() + ".oxd"}
	if err := h.service.ExportProject(r.Context(), sw, id); err != nil {
		h.exportFailed(w, sw, "project_id", id, err)
		return
	}
	h.logger.Info("Project exported", "project_id", id)
}

func (h *ProjectHandler) exportFailed(w http.ResponseWriter, sw *streamWriter, idKey string, id uuid.UUID, err error) {
	h.logger.Error("Failed to export archive", idKey, id, "error", err)
	if sw.started {
		// The status line is already on the wire; drop the connection so
		// the client sees a truncated archive rather than a complete one.
		panic(http.ErrAbortHandler)
	}
	writeError(w, err)
}

// GetDocument returns the stored document body as XML
func (h *ProjectHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "document")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get document", "document_id", id, "error", err)
		writeError(w, err)
		return
	}

	body, err := oxd.MarshalDocument(doc)
	if err != nil {
		h.logger.Error("Failed to encode document", "document_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// CloneDocument duplicates a document together with its assets
func (h *ProjectHandler) CloneDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "document")
	if !ok {
		return
	}

	clone, err := h.service.CloneDocument(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to clone document", "document_id", id, "error", err)
		writeError(w, err)
		return
	}

	resp := CloneResponse{DocumentID: clone.ID.String(), Assets: []string{}}
	for _, key := range oxd.AssetIDs(clone) {
		resp.Assets = append(resp.Assets, string(key))
	}

	h.logger.Info("Document cloned", "document_id", id, "clone_id", clone.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// CreateProject creates a project around an empty document
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		h.logger.Error("Invalid owner ID", "owner_id", req.OwnerID, "error", err)
		http.Error(w, "Invalid owner ID", http.StatusBadRequest)
		return
	}

	project, err := h.service.CreateProject(r.Context(), oxd.CreateProjectRequest{Name: req.Name, OwnerID: ownerID})
	if err != nil {
		h.logger.Error("Failed to create project", "error", err)
		writeError(w, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toProjectResponse(project))
}

// GetProject retrieves a project by ID
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "project")
	if !ok {
		return
	}

	project, err := h.service.GetProject(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get project", "project_id", id, "error", err)
		writeError(w, err)
		return
	}

	render.JSON(w, r, toProjectResponse(project))
}

// ListProjects lists the projects of the owner given by the owner_id query parameter
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("owner_id")
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Error("Invalid owner ID", "owner_id", raw, "error", err)
		http.Error(w, "Invalid owner ID", http.StatusBadRequest)
		return
	}

	projects, err := h.service.ListProjects(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to list projects", "owner_id", ownerID, "error", err)
		writeError(w, err)
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}
	render.JSON(w, r, resp)
}

func (h *ProjectHandler) parseID(w http.ResponseWriter, r *http.Request, kind string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Error("Invalid "+kind+" ID", kind+"_id", idStr, "error", err)
		http.Error(w, "Invalid "+kind+" ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// StatusCode maps a pipeline error to an HTTP status
func StatusCode(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, oxd.ErrDocumentNotFound), errors.Is(err, oxd.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, oxd.ErrUnsupportedAsset), errors.Is(err, oxd.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, oxd.ErrFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, oxd.ErrTransport):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusCode(err))
}
