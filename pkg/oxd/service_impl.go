package oxd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/whizsid/openxd-sub000/pkg/oxd/archive"
)

// DefaultMaxDocumentBytes caps the size of the document entry of an archive.
const DefaultMaxDocumentBytes int64 = 16 << 20

// DocumentEntry is the archive path Export writes the document under.
const DocumentEntry = "main.oxd"

// service implements the Service interface
type service struct {
	repository   Repository
	store        ContentStore
	codec        archive.Codec
	eventSink    EventSink
	logger       *slog.Logger
	maxDocBytes  int64
	cleanOrphans bool
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the document store
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithContentStore sets the asset store
func WithContentStore(store ContentStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithCodec sets the archive compression. Defaults to archive.DefaultCodec.
func WithCodec(codec archive.Codec) Option {
	return func(s *service) {
		s.codec = codec
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMaxDocumentBytes caps the size of the document entry read during import.
func WithMaxDocumentBytes(n int64) Option {
	return func(s *service) {
		s.maxDocBytes = n
	}
}

// WithOrphanCleanup controls whether a failed import or clone deletes the
// assets it already stored. Enabled by default.
func WithOrphanCleanup(enabled bool) Option {
	return func(s *service) {
		s.cleanOrphans = enabled
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		codec:        archive.DefaultCodec,
		eventSink:    NewNoopEventSink(),
		logger:       slog.Default(),
		maxDocBytes:  DefaultMaxDocumentBytes,
		cleanOrphans: true,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if s.codec == nil {
		return nil, fmt.Errorf("codec is required")
	}
	if s.maxDocBytes <= 0 {
		return nil, fmt.Errorf("max document bytes must be positive, got %d", s.maxDocBytes)
	}

	return s, nil
}

// Import operations

func (s *service) Import(ctx context.Context, r io.Reader, req ImportRequest) (result *ImportResult, err error) {
	const op = "import"

	projectID := uuid.New()
	namespace := AssetNamespace(projectID)
	assets := make(AssetMap[ArchivePath, StorageKey])
	var stored []StorageKey

	defer func() {
		if err != nil {
			s.discard(ctx, op, stored)
		}
	}()

	ar, err := archive.NewReader(r, s.codec)
	if err != nil {
		return nil, pipelineErr(op, ErrFormat, err)
	}
	defer ar.Close()

	var doc *Document[ArchivePath]
	for entry, err := range ar.Entries() {
		if err != nil {
			return nil, pipelineErr(op, ErrFormat, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, &PipelineError{Op: op, Kind: ErrTransport, Err: err}
		}

		path := ArchivePath(entry.Path)
		ext := entry.Ext()

		if extOf(entry.Path) == DocumentExtension {
			if doc != nil {
				return nil, &PipelineError{Op: op, Kind: ErrUnsupportedFile,
					Err: fmt.Errorf("second document entry %s", path)}
			}
			if doc, err = s.readDocument(entry); err != nil {
				return nil, pipelineErr(op, ErrFormat, err)
			}
			s.logger.DebugContext(ctx, "document entry read", "path", path)
			continue
		}

		if _, ok := Classify(ext); !ok {
			return nil, &PipelineError{Op: op, Kind: ErrUnsupportedAsset, Err: &UnsupportedAssetError{Path: path}}
		}
		if _, dup := assets[path]; dup {
			return nil, &PipelineError{Op: op, Kind: ErrFormat, Err: fmt.Errorf("duplicate entry %s", path)}
		}

		src := &entrySource{entry: entry}
		key, err := s.store.Put(ctx, src, namespace, ext)
		if err != nil {
			if src.err != nil {
				return nil, pipelineErr(op, ErrFormat, src.err)
			}
			return nil, &PipelineError{Op: op, Kind: ErrStorage, Err: err}
		}
		stored = append(stored, key)
		assets[path] = key

		s.logger.DebugContext(ctx, "asset stored", "path", path, "key", key, "size", entry.Size)
		if err := s.eventSink.AssetStored(ctx, path, key); err != nil {
			s.logger.WarnContext(ctx, "event sink failed", "event", "asset_stored", "err", err)
		}
	}

	if doc == nil {
		return nil, &PipelineError{Op: op, Kind: ErrUnsupportedFile, Err: errors.New("archive holds no document")}
	}

	rewritten, err := Rewrite(doc, assets)
	if err != nil {
		return nil, &PipelineError{Op: op, Kind: ErrFormat, Err: err}
	}
	rewritten.ClearID()

	persisted, err := s.repository.CreateDocument(ctx, rewritten)
	if err != nil {
		return nil, pipelineErr(op, ErrPersistence, err)
	}
	// the persisted document owns the stored assets from here on
	stored = nil

	name := req.ProjectName
	if name == "" {
		name = persisted.Name
	}
	project := newProject(projectID, name, req.OwnerID, persisted.ID)
	if err := s.repository.CreateProject(ctx, project); err != nil {
		s.logger.WarnContext(ctx, "document persisted without project", "document_id", persisted.ID, "err", err)
		return nil, pipelineErr(op, ErrPersistence, err)
	}

	result = &ImportResult{
		Document: persisted,
		Project:  project,
		Assets:   assets,
	}
	if err := s.eventSink.DocumentImported(ctx, result); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "document_imported", "err", err)
	}
	s.logger.InfoContext(ctx, "archive imported",
		"document_id", persisted.ID, "project_id", project.ID, "assets", len(assets))
	return result, nil
}

func (s *service) readDocument(entry *archive.Entry) (*Document[ArchivePath], error) {
	data, err := io.ReadAll(io.LimitReader(entry, s.maxDocBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxDocBytes {
		return nil, fmt.Errorf("%w: document %s exceeds %d bytes", ErrFormat, entry.Path, s.maxDocBytes)
	}
	return UnmarshalDocument[ArchivePath](data)
}

// entrySource remembers the archive error that cut an asset upload short,
// so it is not reported as a content store failure.
type entrySource struct {
	entry *archive.Entry
	err   error
}

func (e *entrySource) Read(p []byte) (int, error) {
	n, err := e.entry.Read(p)
	if err != nil && err != io.EOF {
		e.err = err
	}
	return n, err
}

// discard deletes assets stored by a failed call. The caller's context may
// already be cancelled, so deletes run detached from it. Keys a persisted
// document references are kept when the repository can tell.
func (s *service) discard(ctx context.Context, op string, keys []StorageKey) {
	if !s.cleanOrphans || len(keys) == 0 {
		return
	}
	cleanupCtx := context.WithoutCancel(ctx)
	refs, _ := s.repository.(AssetReferences)

	deleted := 0
	for _, key := range keys {
		if refs != nil {
			docs, err := refs.DocumentsByAsset(cleanupCtx, key)
			if err != nil || len(docs) > 0 {
				s.logger.WarnContext(cleanupCtx, "referenced asset kept", "op", op, "key", key, "documents", docs, "err", err)
				continue
			}
		}
		if err := s.store.Delete(cleanupCtx, key); err != nil {
			s.logger.WarnContext(cleanupCtx, "orphaned asset not deleted", "op", op, "key", key, "err", err)
			continue
		}
		deleted++
	}
	s.logger.WarnContext(cleanupCtx, "discarded assets of failed operation", "op", op, "assets", deleted)
}

// Export operations

func (s *service) Export(ctx context.Context, w io.Writer, documentID uuid.UUID) error {
	const op = "export"

	doc, err := s.repository.GetDocument(ctx, documentID)
	if err != nil {
		return pipelineErr(op, ErrPersistence, err)
	}

	aw, err := archive.NewWriter(w, s.codec)
	if err != nil {
		return pipelineErr(op, ErrTransport, err)
	}

	keys := AssetIDs(doc)
	paths := make(AssetMap[StorageKey, ArchivePath], len(keys))
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return &PipelineError{Op: op, Kind: ErrTransport, Err: err}
		}
		path, err := s.exportAsset(ctx, aw, i, key)
		if err != nil {
			return pipelineErr(op, ErrStorage, err)
		}
		paths[key] = path
		s.logger.DebugContext(ctx, "asset exported", "key", key, "path", path)
	}

	out, err := Rewrite(doc, paths)
	if err != nil {
		return &PipelineError{Op: op, Kind: ErrFormat, Err: err}
	}
	body, err := MarshalDocument(out)
	if err != nil {
		return &PipelineError{Op: op, Kind: ErrFormat, Err: err}
	}
	if err := aw.WriteBytes(DocumentEntry, body); err != nil {
		return pipelineErr(op, ErrTransport, err)
	}
	if err := aw.Close(); err != nil {
		return pipelineErr(op, ErrTransport, err)
	}

	if err := s.eventSink.DocumentExported(ctx, doc.ID, len(keys)); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "document_exported", "err", err)
	}
	s.logger.InfoContext(ctx, "archive exported", "document_id", doc.ID, "assets", len(keys))
	return nil
}

func (s *service) exportAsset(ctx context.Context, aw *archive.Writer, i int, key StorageKey) (ArchivePath, error) {
	info, err := s.store.Info(ctx, key)
	if err != nil {
		return "", err
	}
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	name := fmt.Sprintf("assets/%04d", i+1)
	if info.Extension != "" {
		name += "." + info.Extension
	}
	if err := aw.WriteEntry(name, info.Size, rc); err != nil {
		return "", err
	}
	return ArchivePath(name), nil
}

func (s *service) ExportProject(ctx context.Context, w io.Writer, projectID uuid.UUID) error {
	project, err := s.repository.GetProject(ctx, projectID)
	if err != nil {
		return pipelineErr("export project", ErrPersistence, err)
	}
	return s.Export(ctx, w, project.DocumentID)
}

// Project and document operations

func (s *service) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	const op = "create project"

	doc, err := s.repository.CreateDocument(ctx, NewDocument[StorageKey](sanitizeName(req.Name)))
	if err != nil {
		return nil, pipelineErr(op, ErrPersistence, err)
	}
	project := newProject(uuid.New(), req.Name, req.OwnerID, doc.ID)
	if err := s.repository.CreateProject(ctx, project); err != nil {
		return nil, pipelineErr(op, ErrPersistence, err)
	}
	return project, nil
}

func (s *service) CloneDocument(ctx context.Context, id uuid.UUID) (clone *Document[StorageKey], err error) {
	const op = "clone document"

	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return nil, pipelineErr(op, ErrPersistence, err)
	}

	var copies []StorageKey
	defer func() {
		if err != nil {
			s.discard(ctx, op, copies)
		}
	}()

	keys := make(AssetMap[StorageKey, StorageKey])
	for _, key := range AssetIDs(doc) {
		dup, err := s.store.Duplicate(ctx, key)
		if err != nil {
			return nil, pipelineErr(op, ErrStorage, err)
		}
		copies = append(copies, dup)
		keys[key] = dup
	}

	next, err := Rewrite(doc, keys)
	if err != nil {
		return nil, &PipelineError{Op: op, Kind: ErrFormat, Err: err}
	}
	next.ClearID()

	clone, err = s.repository.CreateDocument(ctx, next)
	if err != nil {
		return nil, pipelineErr(op, ErrPersistence, err)
	}
	s.logger.InfoContext(ctx, "document cloned", "source_id", id, "document_id", clone.ID, "assets", len(keys))
	return clone, nil
}

func (s *service) GetDocument(ctx context.Context, id uuid.UUID) (*Document[StorageKey], error) {
	doc, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return nil, pipelineErr("get document", ErrPersistence, err)
	}
	return doc, nil
}

func (s *service) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	project, err := s.repository.GetProject(ctx, id)
	if err != nil {
		return nil, pipelineErr("get project", ErrPersistence, err)
	}
	return project, nil
}

func (s *service) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*Project, error) {
	projects, err := s.repository.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, pipelineErr("list projects", ErrPersistence, err)
	}
	return projects, nil
}

func newProject(id uuid.UUID, name string, ownerID, documentID uuid.UUID) *Project {
	name = sanitizeName(name)
	if name == "" {
		name = "Untitled"
	}
	return &Project{
		ID:         id,
		Name:       name,
		Slug:       Slugify(name),
		OwnerID:    ownerID,
		DocumentID: documentID,
		CreatedAt:  time.Now().UTC(),
	}
}
