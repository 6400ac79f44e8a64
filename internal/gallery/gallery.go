package gallery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"geotech-rag/internal/config"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

type Image struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type Section struct {
	Name   string  `json:"name"`
	Slug   string  `json:"slug"`
	Images []Image `json:"images"`
}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// ListImages returns the image files directly inside dir, sorted by name.
// The directory is created when missing.
func ListImages(dir string) ([]Image, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var images []Image
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsImage(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		images = append(images, Image{Name: entry.Name(), Size: info.Size()})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

// Sections lists every configured photo directory. Slug is the directory's
// base name and addresses the section in URLs.
func Sections(dirs []config.PhotoDir) ([]Section, error) {
	sections := make([]Section, 0, len(dirs))
	for _, d := range dirs {
		images, err := ListImages(d.Path)
		if err != nil {
			return nil, err
		}
		sections = append(sections, Section{Name: d.Name, Slug: filepath.Base(d.Path), Images: images})
	}
	return sections, nil
}

// Resolve maps a section slug and file name to a path on disk. It rejects
// unknown sections, non-image files and names that leave the directory.
func Resolve(dirs []config.PhotoDir, slug, name string) (string, bool) {
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") || !IsImage(name) {
		return "", false
	}
	for _, d := range dirs {
		if filepath.Base(d.Path) == slug {
			return filepath.Join(d.Path, name), true
		}
	}
	return "", false
}
