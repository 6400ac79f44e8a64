package helper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// PrettyPrint writes v as indented JSON to stdout
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Println(string(b))
}

// CreateFolder creates path and its parents if missing
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// DirExists reports whether path exists and is a directory
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// PublishDir makes dst point at src by swapping a symlink, so readers see
// either the previous directory or src and never a missing dst. src must be
// a sibling of dst. The directory dst pointed to before is removed.
func PublishDir(src, dst string) error {
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	parent := filepath.Dir(dst)
	if filepath.Dir(src) != parent {
		return fmt.Errorf("%s is not a sibling of %s", src, dst)
	}

	prev, err := os.Readlink(dst)
	hasPrev := err == nil
	var legacy string
	if !hasPrev && DirExists(dst) {
		// plain directory: it has to move aside before a link can take its name
		legacy = fmt.Sprintf("%s.old-%d", dst, os.Getpid())
		_ = os.RemoveAll(legacy)
		if err := os.Rename(dst, legacy); err != nil {
			return fmt.Errorf("failed to move old directory aside: %w", err)
		}
		prev, hasPrev = filepath.Base(legacy), true
	}

	link := dst + ".link"
	_ = os.Remove(link)
	err = os.Symlink(filepath.Base(src), link)
	if err == nil {
		err = os.Rename(link, dst)
	}
	if err != nil {
		_ = os.Remove(link)
		if legacy != "" {
			_ = os.Rename(legacy, dst)
		}
		return fmt.Errorf("failed to publish %s: %w", filepath.Base(src), err)
	}

	if hasPrev && prev != filepath.Base(src) {
		if !filepath.IsAbs(prev) {
			prev = filepath.Join(parent, prev)
		}
		if err := os.RemoveAll(prev); err != nil {
			log.Warn().Err(err).Str("path", prev).Msg("Failed to remove old directory")
		}
	}
	return nil
}

// RemovePublishedDir removes dst together with the directory it links to.
func RemovePublishedDir(dst string) error {
	dst = filepath.Clean(dst)
	if target, err := os.Readlink(dst); err == nil {
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(dst), target)
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dst, err)
		}
		return os.RemoveAll(target)
	}
	return os.RemoveAll(dst)
}
