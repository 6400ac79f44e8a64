package gallery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotech-rag/internal/config"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "c.webp", "d.jpeg", "notes.txt", "scan.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o755))

	images, err := ListImages(dir)
	require.NoError(t, err)
	var names []string
	for _, img := range images {
		names = append(names, img.Name)
		assert.Equal(t, int64(3), img.Size)
	}
	assert.Equal(t, []string{"a.png", "b.JPG", "c.webp", "d.jpeg"}, names)
}

func TestListImages_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Deep_foundation")
	images, err := ListImages(dir)
	require.NoError(t, err)
	assert.Empty(t, images)
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	dirs := []config.PhotoDir{
		{Name: "Shallow Foundation", Path: filepath.Join(root, "Shallow_foundation")},
		{Name: "Deep Foundation", Path: filepath.Join(root, "Deep_foundation")},
	}

	path, ok := Resolve(dirs, "Deep_foundation", "pile.jpg")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "Deep_foundation", "pile.jpg"), path)

	for _, tc := range []struct{ slug, name string }{
		{"Deep_foundation", "../secret.jpg"},
		{"Deep_foundation", "notes.txt"},
		{"Deep_foundation", ".hidden.png"},
		{"Unknown", "pile.jpg"},
	} {
		_, ok := Resolve(dirs, tc.slug, tc.name)
		assert.False(t, ok, tc)
	}

	sections, err := Sections(dirs)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Shallow_foundation", sections[0].Slug)
}
