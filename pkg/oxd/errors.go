package oxd

import (
	"errors"
	"fmt"

	"github.com/whizsid/openxd-sub000/pkg/oxd/archive"
)

// Error kinds. Every error returned by the import and export pipelines
// matches exactly one of these with errors.Is.
var (
	// ErrTransport indicates the archive byte stream could not be read or written
	ErrTransport = archive.ErrTransport

	// ErrFormat indicates malformed compression, tar framing or document body
	ErrFormat = archive.ErrFormat

	// ErrUnsupportedAsset indicates a non-document entry with a missing or unknown extension
	ErrUnsupportedAsset = errors.New("unsupported asset")

	// ErrUnsupportedFile indicates the archive did not hold exactly one document
	ErrUnsupportedFile = errors.New("unsupported file")

	// ErrStorage indicates the content store rejected an operation
	ErrStorage = errors.New("storage failure")

	// ErrPersistence indicates the document store rejected an operation
	ErrPersistence = errors.New("persistence failure")

	// ErrDocumentNotFound indicates a document was not found
	ErrDocumentNotFound = errors.New("document not found")

	// ErrProjectNotFound indicates a project was not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrAssetNotFound indicates an asset was not found in the content store
	ErrAssetNotFound = errors.New("asset not found")

	// ErrUnmappedAsset indicates a document referenced an asset missing from the rewrite map
	ErrUnmappedAsset = errors.New("unmapped asset reference")
)

// PipelineError is returned by Service operations. Kind is one of the
// package error kinds; Err is the underlying cause.
type PipelineError struct {
	Op   string
	Kind error
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UnsupportedAssetError names the archive entry that could not be classified.
type UnsupportedAssetError struct {
	Path ArchivePath
}

func (e *UnsupportedAssetError) Error() string {
	return fmt.Sprintf("unsupported asset format %s", e.Path)
}

func (e *UnsupportedAssetError) Unwrap() error {
	return ErrUnsupportedAsset
}

// UnmappedAssetError names the reference that had no entry in the rewrite map.
type UnmappedAssetError struct {
	ID string
}

func (e *UnmappedAssetError) Error() string {
	return fmt.Sprintf("asset %q has no mapping", e.ID)
}

func (e *UnmappedAssetError) Unwrap() error {
	return ErrUnmappedAsset
}

// StorageError represents an error related to content store operations.
// It matches ErrStorage as well as its cause.
type StorageError struct {
	Backend string
	Key     StorageKey
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// kindOf picks the error kind for err, falling back to def.
func kindOf(err, def error) error {
	for _, kind := range []error{
		ErrDocumentNotFound,
		ErrProjectNotFound,
		ErrUnsupportedAsset,
		ErrUnsupportedFile,
		ErrFormat,
		ErrTransport,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return def
}

func pipelineErr(op string, def error, err error) error {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Op: op, Kind: kindOf(err, def), Err: err}
}
