package cache

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var preferredCovers = []string{"cover.jpg", "cover.jpeg", "cover.png", "cover.webp"}

var imageExts = []string{".jpg", ".jpeg", ".png", ".webp"}

// IsImageFile reports whether name has a cover image extension.
func IsImageFile(name string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(name)))
}

// FindCover returns the cover image inside a book directory, or "" when there
// is none. A file named cover.* wins over any other image in the directory.
func FindCover(dir string) string {
	for _, name := range preferredCovers {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") && IsImageFile(e.Name()) {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}
