package oxd

import (
	"path"
	"strings"
)

// DocumentExtension marks the structural document entry of an archive.
const DocumentExtension = "oxd"

// MediaKind is a recognized asset media type.
type MediaKind string

const (
	MediaKindJPEG MediaKind = "jpeg"
	MediaKindGIF  MediaKind = "gif"
	MediaKindPNG  MediaKind = "png"
)

// MimeType returns the IANA media type used when uploading the asset.
func (k MediaKind) MimeType() string {
	switch k {
	case MediaKindJPEG:
		return "image/jpeg"
	case MediaKindGIF:
		return "image/gif"
	case MediaKindPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

var assetExtensions = map[string]MediaKind{
	"jpg":  MediaKindJPEG,
	"jpeg": MediaKindJPEG,
	"gif":  MediaKindGIF,
	"png":  MediaKindPNG,
}

// Classify maps a file extension, with or without its leading dot, to a
// recognized asset kind. Unknown or empty extensions report false.
func Classify(ext string) (MediaKind, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	kind, ok := assetExtensions[ext]
	return kind, ok
}

// extOf returns the lower-cased extension of p without the leading dot.
func extOf(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}
