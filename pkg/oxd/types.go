package oxd

import (
	"encoding/xml"
	"time"

	"github.com/google/uuid"
)

// FormatVersion is the structural document version written by this library.
const FormatVersion = "0.0.1"

// ArchivePath names an entry inside a project archive. It is only meaningful
// within the archive it was read from or written to.
type ArchivePath string

// StorageKey is an opaque identifier issued by a ContentStore.
type StorageKey string

// AssetID is the set of identifier domains a Document can be expressed in.
// A document holds references from exactly one domain at a time.
type AssetID interface {
	ArchivePath | StorageKey
}

// AssetMap translates asset identifiers from one domain to another.
type AssetMap[From, To AssetID] map[From]To

// Document is the canonical structural project document.
//
// Asset references live in Artboard.Background and Image.Source. Everything
// else is business data that travels unchanged between identifier domains.
type Document[A AssetID] struct {
	XMLName   xml.Name      `xml:"oxd"`
	ID        uuid.UUID     `xml:"id,attr"`
	Version   string        `xml:"version,attr"`
	Name      string        `xml:"name,omitempty"`
	Artboards []Artboard[A] `xml:"artboards>artboard"`
}

// Artboard is a single drawing surface of a document.
type Artboard[A AssetID] struct {
	Name       string     `xml:"name,attr"`
	Width      float64    `xml:"width,attr"`
	Height     float64    `xml:"height,attr"`
	Background *A         `xml:"background,omitempty"`
	Images     []Image[A] `xml:"image"`
}

// Image is a placed raster image element.
type Image[A AssetID] struct {
	Name   string  `xml:"name,attr,omitempty"`
	X      float64 `xml:"x,attr"`
	Y      float64 `xml:"y,attr"`
	Width  float64 `xml:"width,attr"`
	Height float64 `xml:"height,attr"`
	Source A       `xml:"source"`
}

// NewDocument returns an empty document at the current format version.
func NewDocument[A AssetID](name string) *Document[A] {
	return &Document[A]{
		Version: FormatVersion,
		Name:    name,
	}
}

// ClearID resets the document identity so persistence assigns a fresh one.
func (d *Document[A]) ClearID() {
	d.ID = uuid.Nil
}

// AssetInfo is what a ContentStore knows about one stored asset.
type AssetInfo struct {
	Extension string // without leading dot, may be empty
	Size      int64
}

// Project groups a persisted document under a user-facing name.
type Project struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	OwnerID    uuid.UUID `json:"owner_id"`
	DocumentID uuid.UUID `json:"document_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImportRequest carries the caller identity for an archive import.
type ImportRequest struct {
	ProjectName string
	OwnerID     uuid.UUID
}

// ImportResult is returned by a successful import.
type ImportResult struct {
	Document *Document[StorageKey]
	Project  *Project
	// Assets maps each archive entry to the key it was stored under.
	Assets AssetMap[ArchivePath, StorageKey]
}

// CreateProjectRequest creates a project around an empty document.
type CreateProjectRequest struct {
	Name    string
	OwnerID uuid.UUID
}

// Clone returns a deep copy of d.
func (d *Document[A]) Clone() *Document[A] {
	out := *d
	if d.Artboards != nil {
		out.Artboards = make([]Artboard[A], len(d.Artboards))
		for i, ab := range d.Artboards {
			if ab.Background != nil {
				bg := *ab.Background
				ab.Background = &bg
			}
			if ab.Images != nil {
				images := make([]Image[A], len(ab.Images))
				copy(images, ab.Images)
				ab.Images = images
			}
			out.Artboards[i] = ab
		}
	}
	return &out
}
