package objectkey

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for storage backends
	GenerateKey(namespace string, objectID uuid.UUID, ext string) string

	// Namespace recovers the namespace a key was generated under
	Namespace(key string) string
}

// FlatGenerator stores every object directly under its namespace:
// {namespace}/{objectID}.{ext}
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(namespace string, objectID uuid.UUID, ext string) string {
	return join(namespace, withExt(objectID.String(), ext))
}

func (g *FlatGenerator) Namespace(key string) string {
	return dir(key)
}

// GitLikeGenerator provides Git-style sharded storage inside each namespace
// {namespace}/objects/ab/cd1234ef5678.{ext}
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) GenerateKey(namespace string, objectID uuid.UUID, ext string) string {
	// Use objectID for sharding since it's unique and random
	return shard(namespace, strings.ReplaceAll(objectID.String(), "-", ""), g.ShardLength, ext)
}

func (g *GitLikeGenerator) Namespace(key string) string {
	return shardedNamespace(key)
}

// HashedGitLikeGenerator shards on a hash of namespace and object ID, spreading
// keys evenly even when object IDs are sequential
type HashedGitLikeGenerator struct {
	ShardLength int
}

func NewHashedGitLikeGenerator() *HashedGitLikeGenerator {
	return &HashedGitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *HashedGitLikeGenerator) GenerateKey(namespace string, objectID uuid.UUID, ext string) string {
	hash := sha256.Sum256([]byte(namespace + objectID.String()))
	return shard(namespace, fmt.Sprintf("%x", hash)[:32], g.ShardLength, ext)
}

func (g *HashedGitLikeGenerator) Namespace(key string) string {
	return shardedNamespace(key)
}

// CustomFuncGenerator allows users to provide their own key generation function.
// Namespace assumes the key's parent directory is its namespace.
type CustomFuncGenerator struct {
	GenerateFunc func(namespace string, objectID uuid.UUID, ext string) string
}

func NewCustomFuncGenerator(fn func(namespace string, objectID uuid.UUID, ext string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(namespace string, objectID uuid.UUID, ext string) string {
	return g.GenerateFunc(namespace, objectID, ext)
}

func (g *CustomFuncGenerator) Namespace(key string) string {
	return dir(key)
}

// ByName returns the generator for a configured key layout
func ByName(layout string) (Generator, error) {
	switch strings.ToLower(layout) {
	case "", "flat":
		return NewFlatGenerator(), nil
	case "git-like", "gitlike":
		return NewGitLikeGenerator(), nil
	case "hashed":
		return NewHashedGitLikeGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key layout %q", layout)
	}
}

const objectsDir = "objects"

func shard(namespace, id string, length int, ext string) string {
	if length <= 0 {
		length = 2
	}
	if length > len(id) {
		length = len(id)
	}
	return join(namespace, objectsDir, id[:length], withExt(id[length:], ext))
}

func shardedNamespace(key string) string {
	if strings.HasPrefix(key, objectsDir+"/") {
		return ""
	}
	if i := strings.LastIndex(key, "/"+objectsDir+"/"); i >= 0 {
		return key[:i]
	}
	return dir(key)
}

func withExt(name, ext string) string {
	ext = sanitizePathComponent(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func join(namespace string, parts ...string) string {
	var segs []string
	for _, seg := range strings.Split(namespace, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segs = append(segs, sanitizeSegment(seg))
	}
	return strings.Join(append(segs, parts...), "/")
}

func dir(key string) string {
	d := path.Dir(key)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// Helper functions for path sanitization
func sanitizeSegment(segment string) string {
	// Replace problematic characters for filesystem compatibility
	replacer := strings.NewReplacer(
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(segment)
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(sanitizeSegment(strings.ReplaceAll(component, "/", "_")))
}
