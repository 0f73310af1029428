// Package chapters maps cached chapter files to chapter indexes.
//
// Filenames carry a 1-based ordinal ("chapter_3.mp3", "republic-003.mp3"); the
// chapter index used everywhere else is 0-based, so index == ordinal-1.
package chapters

import (
	"cmp"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	domainerrors "github.com/audiody/audiody/internal/errors"
)

// NotAvailableMarker tags the output of a failed or partial download.
// Such files are never resolved, listed, or played.
const NotAvailableMarker = "_NA"

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".ogg":  true,
	".opus": true,
	".flac": true,
	".wav":  true,
}

// File is a chapter file found in a book directory.
type File struct {
	Name       string
	Path       string
	Ordinal    int  // 0 when HasOrdinal is false
	HasOrdinal bool // false when the name carries no parseable ordinal
}

// Index returns the 0-based chapter index, or -1 when the file has no ordinal.
func (f File) Index() int {
	if !f.HasOrdinal {
		return -1
	}
	return f.Ordinal - 1
}

// IsAudioFile reports whether name has a chapter audio extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsNotAvailable reports whether name carries the _NA marker.
func IsNotAvailable(name string) bool {
	return strings.Contains(name, NotAvailableMarker)
}

// ExtractOrdinal parses the numeric token of a chapter filename.
//
// With the extension removed, the token is the second '-' delimited segment
// when the name contains a '-', otherwise the second '_' delimited segment.
// Only its leading digits are read: "chapter-003.mp3" and "chapter_3.mp3" give 3,
// "cover.webp" gives nothing.
func ExtractOrdinal(name string) (int, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	sep := "_"
	if strings.Contains(stem, "-") {
		sep = "-"
	}
	parts := strings.Split(stem, sep)
	if len(parts) < 2 {
		return 0, false
	}

	token := strings.TrimSpace(parts[1])
	end := 0
	for end < len(token) && token[end] >= '0' && token[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.ParseUint(token[:end], 10, 31)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// scan reads dir once and returns every audio file that is not marked _NA.
// A missing directory yields no files and no error.
func scan(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "read chapter directory %s", dir)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !IsAudioFile(name) || IsNotAvailable(name) {
			continue
		}
		ord, ok := ExtractOrdinal(name)
		files = append(files, File{
			Name:       name,
			Path:       filepath.Join(dir, name),
			Ordinal:    ord,
			HasOrdinal: ok,
		})
	}
	return files, nil
}

func byOrdinal(a, b File) int {
	if c := cmp.Compare(a.Ordinal, b.Ordinal); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// List returns the display listing of dir: every valid chapter file sorted by
// ordinal, with files lacking an ordinal sorted first (key 0).
func List(dir string) ([]File, error) {
	files, err := scan(dir)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(files, byOrdinal)
	return files, nil
}

// ListStrict is List without the files whose ordinal could not be parsed.
func ListStrict(dir string) ([]File, error) {
	files, err := scan(dir)
	if err != nil {
		return nil, err
	}
	files = slices.DeleteFunc(files, func(f File) bool { return !f.HasOrdinal })
	slices.SortStableFunc(files, byOrdinal)
	return files, nil
}

// Resolve returns the path of the cached file for the 0-based index.
// ok is false on a cache miss, including when dir does not exist.
func Resolve(dir string, index int) (path string, ok bool, err error) {
	if index < 0 {
		return "", false, nil
	}
	files, err := ListStrict(dir)
	if err != nil {
		return "", false, err
	}
	for _, f := range files {
		if f.Index() == index {
			return f.Path, true, nil
		}
	}
	return "", false, nil
}

// FileName returns the name direct fetches store the 0-based index under.
func FileName(index int, ext string) string {
	if ext == "" {
		ext = ".mp3"
	}
	return "chapter_" + strconv.Itoa(index+1) + ext
}
