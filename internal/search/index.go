package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/audiody/audiody/internal/domain"
)

// BookSource lists the saved books to index.
type BookSource interface {
	SavedBooks(ctx context.Context) ([]*domain.Book, error)
}

// Index wraps an in-memory Bleve index.
//
// Thread safety: all methods are safe for concurrent use. Rebuild swaps the
// underlying index under the write lock.
type Index struct {
	index  bleve.Index
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewIndex creates an empty index.
func NewIndex(logger *slog.Logger) (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: index, logger: logger}, nil
}

// Close releases the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook adds or replaces one book.
func (s *Index) IndexBook(book *domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := BookToDocument(book)
	return s.index.Index(doc.ID, doc.ToMap())
}

// DeleteBook removes the book stored under title.
func (s *Index) DeleteBook(title string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(title)
}

// Count returns the number of indexed books.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild replaces the index contents with the books src lists now.
func (s *Index) Rebuild(ctx context.Context, src BookSource) error {
	books, err := src.SavedBooks(ctx)
	if err != nil {
		return err
	}

	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, book := range books {
		doc := BookToDocument(book)
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("commit batch: %w", err)
	}

	s.mu.Lock()
	old := s.index
	s.index = fresh
	s.mu.Unlock()

	if err := old.Close(); err != nil {
		s.logger.Warn("failed to close previous search index", "error", err)
	}
	s.logger.Debug("rebuilt search index", "books", len(books))
	return nil
}
