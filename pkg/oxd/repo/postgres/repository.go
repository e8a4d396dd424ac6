package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/whizsid/openxd-sub000/pkg/oxd"
)

// Schema creates the tables used by Repository. It is idempotent.
//
//go:embed schema.sql
var Schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// beginner is implemented by pools, connections and transactions.
type beginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

var (
	_ oxd.Repository      = (*Repository)(nil)
	_ oxd.AssetReferences = (*Repository)(nil)
)

// Repository implements oxd.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate applies Schema
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper. Every returned error matches oxd.ErrPersistence.
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s: duplicate entry (%s)", oxd.ErrPersistence, operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s: referenced record not found (%s)", oxd.ErrPersistence, operation, pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: %s: required field %s is missing", oxd.ErrPersistence, operation, pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("%w: %s: table does not exist - database migration required", oxd.ErrPersistence, operation)
		default:
			return fmt.Errorf("%w: database error in %s: %s (code: %s)", oxd.ErrPersistence, operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("%w: database error in %s: %w", oxd.ErrPersistence, operation, err)
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, doc *oxd.Document[oxd.StorageKey]) (*oxd.Document[oxd.StorageKey], error) {
	stored := doc.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}

	body, err := oxd.MarshalDocument(stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", oxd.ErrPersistence, err)
	}

	err = r.inTx(ctx, func(db DBTX) error {
		_, err := db.Exec(ctx, `
			INSERT INTO documents (id, version, name, body)
			VALUES ($1, $2, $3, $4)`,
			stored.ID, stored.Version, stored.Name, string(body))
		if err != nil {
			return err
		}

		for i, key := range oxd.AssetIDs(stored) {
			_, err := db.Exec(ctx, `
				INSERT INTO document_assets (document_id, position, storage_key)
				VALUES ($1, $2, $3)`,
				stored.ID, i, string(key))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, handlePostgresError("create document", err)
	}

	return stored, nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*oxd.Document[oxd.StorageKey], error) {
	var body string
	err := r.db.QueryRow(ctx, `SELECT body FROM documents WHERE id = $1`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oxd.ErrDocumentNotFound
		}
		return nil, handlePostgresError("get document", err)
	}

	doc, err := oxd.UnmarshalDocument[oxd.StorageKey]([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("%w: stored document %s: %w", oxd.ErrPersistence, id, err)
	}
	doc.ID = id
	return doc, nil
}

// DocumentsByAsset returns the documents referencing key
func (r *Repository) DocumentsByAsset(ctx context.Context, key oxd.StorageKey) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT document_id FROM document_assets
		WHERE storage_key = $1
		ORDER BY document_id`, string(key))
	if err != nil {
		return nil, handlePostgresError("documents by asset", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, handlePostgresError("documents by asset", err)
	}
	return ids, nil
}

// Project operations

func (r *Repository) CreateProject(ctx context.Context, project *oxd.Project) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO projects (id, name, slug, owner_id, document_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		project.ID, project.Name, project.Slug, project.OwnerID, project.DocumentID, project.CreatedAt)
	if err != nil {
		return handlePostgresError("create project", err)
	}
	return nil
}

const projectColumns = `id, name, slug, owner_id, document_id, created_at`

func scanProject(row pgx.Row) (*oxd.Project, error) {
	var p oxd.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.OwnerID, &p.DocumentID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (*oxd.Project, error) {
	project, err := scanProject(r.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oxd.ErrProjectNotFound
		}
		return nil, handlePostgresError("get project", err)
	}
	return project, nil
}

func (r *Repository) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*oxd.Project, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, handlePostgresError("list projects", err)
	}
	defer rows.Close()

	var projects []*oxd.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, handlePostgresError("list projects", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list projects", err)
	}

	return projects, nil
}

// inTx runs fn inside a transaction when the underlying handle can start one
func (r *Repository) inTx(ctx context.Context, fn func(DBTX) error) error {
	b, ok := r.db.(beginner)
	if !ok {
		return fn(r.db)
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
