package oxd

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service moves project archives in and out of the content and document stores.
type Service interface {
	// Import reads a compressed archive holding exactly one document plus its
	// image assets, stores every asset, and persists the document with its
	// references rewritten to storage keys.
	Import(ctx context.Context, r io.Reader, req ImportRequest) (*ImportResult, error)

	// Export writes a persisted document and every asset it references to w
	// as a compressed archive. Assets keep the extension of their storage key;
	// an archive holding an asset without a supported extension is rejected
	// by Import.
	Export(ctx context.Context, w io.Writer, documentID uuid.UUID) error
	ExportProject(ctx context.Context, w io.Writer, projectID uuid.UUID) error

	// Project and document operations
	CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error)
	CloneDocument(ctx context.Context, id uuid.UUID) (*Document[StorageKey], error)
	GetDocument(ctx context.Context, id uuid.UUID) (*Document[StorageKey], error)
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*Project, error)
}

// AssetNamespace is the content store namespace for assets imported into a project.
func AssetNamespace(projectID uuid.UUID) string {
	return "session/" + projectID.String() + "/assets"
}
