package objectkey

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var objectID = uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

func TestFlatGenerator(t *testing.T) {
	gen := NewFlatGenerator()

	tests := []struct {
		name      string
		namespace string
		ext       string
		want      string
	}{
		{"session asset", "session/p1/assets", "jpg", "session/p1/assets/987fcdeb-51a2-43d1-9f12-345678901234.jpg"},
		{"dotted ext", "ns", ".GIF", "ns/987fcdeb-51a2-43d1-9f12-345678901234.gif"},
		{"no ext", "ns", "", "ns/987fcdeb-51a2-43d1-9f12-345678901234"},
		{"empty namespace", "", "png", "987fcdeb-51a2-43d1-9f12-345678901234.png"},
		{"traversal dropped", "../a/./b", "png", "a/b/987fcdeb-51a2-43d1-9f12-345678901234.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := gen.GenerateKey(tt.namespace, objectID, tt.ext)
			assert.Equal(t, tt.want, key)
		})
	}

	assert.Equal(t, "session/p1/assets", gen.Namespace("session/p1/assets/x.jpg"))
	assert.Equal(t, "", gen.Namespace("x.jpg"))
}

func TestGitLikeGenerator(t *testing.T) {
	gen := NewGitLikeGenerator()

	key := gen.GenerateKey("session/p1/assets", objectID, "jpg")
	assert.Equal(t, "session/p1/assets/objects/98/7fcdeb51a243d19f12345678901234.jpg", key)
	assert.Equal(t, "session/p1/assets", gen.Namespace(key))

	rootKey := gen.GenerateKey("", objectID, "")
	assert.Equal(t, "objects/98/7fcdeb51a243d19f12345678901234", rootKey)
	assert.Equal(t, "", gen.Namespace(rootKey))

	wide := &GitLikeGenerator{ShardLength: 3}
	assert.True(t, strings.HasPrefix(wide.GenerateKey("ns", objectID, "gif"), "ns/objects/987/"))
	assert.Equal(t, 3, wide.ShardLength)
}

func TestHashedGitLikeGenerator(t *testing.T) {
	gen := NewHashedGitLikeGenerator()

	first := gen.GenerateKey("ns", objectID, "png")
	second := gen.GenerateKey("ns", objectID, "png")
	other := gen.GenerateKey("other", objectID, "png")

	assert.Equal(t, first, second)
	assert.NotEqual(t, strings.TrimPrefix(first, "ns/"), strings.TrimPrefix(other, "other/"))
	assert.True(t, strings.HasSuffix(first, ".png"))
	assert.Equal(t, "ns", gen.Namespace(first))
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := NewCustomFuncGenerator(func(namespace string, id uuid.UUID, ext string) string {
		return "custom/" + namespace + "/" + id.String() + "." + ext
	})

	key := gen.GenerateKey("ns", objectID, "jpg")
	assert.Equal(t, "custom/ns/987fcdeb-51a2-43d1-9f12-345678901234.jpg", key)
	assert.Equal(t, "custom/ns", gen.Namespace(key))
}

func TestByName(t *testing.T) {
	for layout, want := range map[string]Generator{
		"":         &FlatGenerator{},
		"flat":     &FlatGenerator{},
		"git-like": NewGitLikeGenerator(),
		"GitLike":  NewGitLikeGenerator(),
		"hashed":   NewHashedGitLikeGenerator(),
	} {
		gen, err := ByName(layout)
		require.NoError(t, err, layout)
		assert.IsType(t, want, gen, layout)
	}

	_, err := ByName("random")
	assert.Error(t, err)
}
