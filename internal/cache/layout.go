// Package cache owns the on-disk layout of the book cache: one directory per
// book under <root>/books, named after the sanitized book title.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/audiody/audiody/internal/errors"
)

const maxDirNameBytes = 200

// Layout resolves book directories under a books root.
type Layout struct {
	booksDir string
}

// NewLayout creates a layout rooted at booksDir. The directory is created lazily.
func NewLayout(booksDir string) Layout {
	return Layout{booksDir: filepath.Clean(booksDir)}
}

// BooksDir returns the root holding one directory per book.
func (l Layout) BooksDir() string {
	return l.booksDir
}

// BookDir returns the cache directory for title without touching the filesystem.
func (l Layout) BookDir(title string) string {
	return filepath.Join(l.booksDir, SanitizeTitle(title))
}

// EnsureBookDir creates the book directory (and parents) if needed.
func (l Layout) EnsureBookDir(title string) (string, error) {
	dir := l.BookDir(title)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "create book directory %s", dir)
	}
	return dir, nil
}

// BookDirExists reports whether a cache directory exists for title.
func (l Layout) BookDirExists(title string) bool {
	info, err := os.Stat(l.BookDir(title))
	return err == nil && info.IsDir()
}

// BookDirs lists the names of all book directories. A missing root yields none.
func (l Layout) BookDirs() ([]string, error) {
	entries, err := os.ReadDir(l.booksDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "read books root %s", l.booksDir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// SanitizeTitle turns a display title into a single safe path element.
// "The Republic" stays "The Republic"; "AC/DC: Live?" becomes "AC_DC_ Live_".
func SanitizeTitle(title string) string {
	s := norm.NFC.String(strings.TrimSpace(title))

	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)

	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ". ")

	if len(s) > maxDirNameBytes {
		s = truncateUTF8(s, maxDirNameBytes)
	}
	if s == "" || s == "." || s == ".." {
		return "untitled"
	}
	return s
}

func truncateUTF8(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimRight(s[:n], ". ")
}

// WriteFileAtomic streams r into a temporary sibling of path and renames it into
// place, so a reader never observes a partially written file under path.
func WriteFileAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if copyErr != nil {
			return n, fmt.Errorf("write %s: %w", path, copyErr)
		}
		return n, domainerrors.Wrapf(closeErr, domainerrors.CodeFilesystem, "close %s", tmpName)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return n, domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "rename into %s", path)
	}
	return n, nil
}
