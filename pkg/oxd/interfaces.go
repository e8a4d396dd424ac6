package oxd

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ContentStore holds asset bytes under opaque storage keys.
type ContentStore interface {
	// Put stores r under a fresh key grouped by namespace. A failed Put
	// leaves nothing visible to Get.
	Put(ctx context.Context, r io.Reader, namespace, ext string) (StorageKey, error)

	// Get opens the stored bytes; unknown keys fail with ErrAssetNotFound
	Get(ctx context.Context, key StorageKey) (io.ReadCloser, error)

	// Delete removes the asset; unknown keys are an error
	Delete(ctx context.Context, key StorageKey) error

	// Info returns the extension and size of a stored asset
	Info(ctx context.Context, key StorageKey) (*AssetInfo, error)

	// Duplicate copies the asset byte for byte under a new key
	Duplicate(ctx context.Context, key StorageKey) (StorageKey, error)
}

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload uploads content directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads content with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// Repository defines the interface for document and project persistence
type Repository interface {
	// CreateDocument persists doc, assigning a new ID when doc.ID is nil
	CreateDocument(ctx context.Context, doc *Document[StorageKey]) (*Document[StorageKey], error)
	GetDocument(ctx context.Context, id uuid.UUID) (*Document[StorageKey], error)

	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*Project, error)
}

// AssetReferences is implemented by repositories that index the storage keys
// of their documents. Cleanup after a failed call never deletes a key that a
// persisted document references.
type AssetReferences interface {
	// DocumentsByAsset returns the IDs of documents referencing key
	DocumentsByAsset(ctx context.Context, key StorageKey) ([]uuid.UUID, error)
}

// EventSink defines the interface for event handling
type EventSink interface {
	// AssetStored is fired after an archive entry lands in the content store
	AssetStored(ctx context.Context, path ArchivePath, key StorageKey) error

	// DocumentImported is fired after an archive import commits
	DocumentImported(ctx context.Context, result *ImportResult) error

	// DocumentExported is fired after an archive is fully written
	DocumentExported(ctx context.Context, documentID uuid.UUID, assets int) error
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
