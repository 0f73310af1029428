// Package progress persists per-book resume state as settings.json inside the
// book's cache directory.
package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
)

// FileName is the record file inside each book directory.
const FileName = "settings.json"

// Store reads and writes progress records. Writes are last-write-wins and
// always replace the whole record.
type Store struct {
	layout cache.Layout
	logger *slog.Logger
}

// NewStore creates a store over layout.
func NewStore(layout cache.Layout, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{layout: layout, logger: logger}
}

// Path returns the record path for title.
func (s *Store) Path(title string) string {
	return filepath.Join(s.layout.BookDir(title), FileName)
}

// Save overwrites the record for title. Callers updating only the position
// must pass chapter and bookURL again.
func (s *Store) Save(title string, chapter *int, bookURL string, position *float64) error {
	dir, err := s.layout.EnsureBookDir(title)
	if err != nil {
		return err
	}

	record := domain.ProgressRecord{
		BookURL:            bookURL,
		CurrentChapter:     chapter,
		CurrentChapterTime: position,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "encode progress record")
	}

	if _, err := cache.WriteFileAtomic(filepath.Join(dir, FileName), bytes.NewReader(data)); err != nil {
		return err
	}

	s.logger.Debug("progress saved", "book", title, "chapter", chapter, "position", position)
	return nil
}

// Load returns the record for title. A missing directory or record file is a
// NOT_FOUND error; an unreadable or malformed file is FILESYSTEM or PARSE.
func (s *Store) Load(title string) (*domain.ProgressRecord, error) {
	return ReadFile(s.Path(title))
}

// LoadOrDefault is Load for read paths: any failure yields a blank record.
func (s *Store) LoadOrDefault(title string) domain.ProgressRecord {
	record, err := s.Load(title)
	if err != nil {
		if !errors.Is(err, domainerrors.ErrNotFound) {
			s.logger.Warn("unreadable progress record, using blank", "book", title, "error", err)
		}
		return domain.ProgressRecord{}
	}
	return *record
}

// Exists reports whether a record file exists for title.
func (s *Store) Exists(title string) bool {
	_, err := os.Stat(s.Path(title))
	return err == nil
}

// EnsureExists writes a blank record carrying bookURL when none exists yet.
// It reports whether a record was created.
func (s *Store) EnsureExists(title, bookURL string) (bool, error) {
	if s.Exists(title) {
		return false, nil
	}
	if err := s.Save(title, nil, bookURL, nil); err != nil {
		return false, err
	}
	return true, nil
}

// ReadFile decodes a record file at path.
func ReadFile(path string) (*domain.ProgressRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domainerrors.NotFoundf("no progress record at %s", path)
	}
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "read progress record %s", path)
	}

	var record domain.ProgressRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeParse, "decode progress record %s", path)
	}
	return &record, nil
}
