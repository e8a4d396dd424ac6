package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/whizsid/openxd-sub000/pkg/oxd"
)

var (
	_ oxd.Repository      = (*Repository)(nil)
	_ oxd.AssetReferences = (*Repository)(nil)
)

// Repository implements oxd.Repository using in-memory storage
type Repository struct {
	mu        sync.RWMutex
	documents map[uuid.UUID]*oxd.Document[oxd.StorageKey]
	projects  map[uuid.UUID]*oxd.Project
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		documents: make(map[uuid.UUID]*oxd.Document[oxd.StorageKey]),
		projects:  make(map[uuid.UUID]*oxd.Project),
	}
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, doc *oxd.Document[oxd.StorageKey]) (*oxd.Document[oxd.StorageKey], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to avoid external modifications
	stored := doc.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if _, exists := r.documents[stored.ID]; exists {
		return nil, fmt.Errorf("%w: document %s already exists", oxd.ErrPersistence, stored.ID)
	}
	r.documents[stored.ID] = stored

	return stored.Clone(), nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*oxd.Document[oxd.StorageKey], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return nil, oxd.ErrDocumentNotFound
	}

	// Return a copy to prevent external modifications
	return doc.Clone(), nil
}

// DocumentsByAsset returns the documents referencing key
func (r *Repository) DocumentsByAsset(ctx context.Context, key oxd.StorageKey) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for id, doc := range r.documents {
		for _, ref := range oxd.AssetIDs(doc) {
			if ref == key {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// Project operations

func (r *Repository) CreateProject(ctx context.Context, project *oxd.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[project.ID]; exists {
		return fmt.Errorf("%w: project %s already exists", oxd.ErrPersistence, project.ID)
	}
	if _, exists := r.documents[project.DocumentID]; !exists {
		return fmt.Errorf("%w: %s", oxd.ErrDocumentNotFound, project.DocumentID)
	}

	projectCopy := *project
	r.projects[project.ID] = &projectCopy
	return nil
}

func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (*oxd.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, exists := r.projects[id]
	if !exists {
		return nil, oxd.ErrProjectNotFound
	}

	projectCopy := *project
	return &projectCopy, nil
}

// ListProjects returns the owner's projects, newest first
func (r *Repository) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*oxd.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*oxd.Project
	for _, project := range r.projects {
		if project.OwnerID == ownerID {
			projectCopy := *project
			result = append(result, &projectCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
