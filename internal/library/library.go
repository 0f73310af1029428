// Package library assembles Book records from the cache root. Nothing here is
// stored: every call rebuilds the view from the directory tree.
package library

import (
	"cmp"
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/catalog"
	"github.com/audiody/audiody/internal/chapters"
	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/media/images"
	"github.com/audiody/audiody/internal/progress"
)

// Library lists saved books.
type Library struct {
	layout    cache.Layout
	progress  *progress.Store
	blurhash  *images.BlurHashCache
	probeTags bool
	logger    *slog.Logger
}

// Option configures a Library.
type Option func(*Library)

// WithoutProbe skips reading tags and durations from chapter files.
func WithoutProbe() Option {
	return func(l *Library) { l.probeTags = false }
}

// New creates a library over layout.
func New(layout cache.Layout, progressStore *progress.Store, logger *slog.Logger, opts ...Option) *Library {
	l := &Library{
		layout:    layout,
		progress:  progressStore,
		blurhash:  images.NewBlurHashCache(),
		probeTags: true,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SavedBooks returns every book with a cache directory, sorted by title.
func (l *Library) SavedBooks(ctx context.Context) ([]*domain.Book, error) {
	names, err := l.layout.BookDirs()
	if err != nil {
		return nil, err
	}

	books := make([]*domain.Book, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		book, err := l.load(ctx, name)
		if err != nil {
			l.logger.Warn("skipping unreadable book directory", "dir", name, "error", err)
			continue
		}
		books = append(books, book)
	}

	slices.SortFunc(books, func(a, b *domain.Book) int {
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	})
	return books, nil
}

// SavedBook returns the book cached under title.
func (l *Library) SavedBook(ctx context.Context, title string) (*domain.Book, error) {
	if !l.layout.BookDirExists(title) {
		return nil, domainerrors.NotFoundf("book %q is not saved", title)
	}
	return l.load(ctx, cache.SanitizeTitle(title))
}

// SavedBookByURL finds a saved book by the book URL in its progress record.
func (l *Library) SavedBookByURL(ctx context.Context, bookURL string) (*domain.Book, error) {
	want := domain.NewBookID(bookURL)
	if want == "" {
		return nil, domainerrors.Validation("book url is required")
	}

	books, err := l.SavedBooks(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		if b.ID == want {
			return b, nil
		}
	}
	return nil, domainerrors.NotFoundf("no saved book for %s", bookURL)
}

// Reconcile joins a remote book with its local copy. The book URL is the
// join key; the title is used only when no local record carries a URL.
func (l *Library) Reconcile(ctx context.Context, detail *catalog.BookDetail, bookURL string) (*domain.Book, error) {
	if detail == nil {
		return nil, domainerrors.Validation("book detail is required")
	}
	if local, err := l.SavedBookByURL(ctx, bookURL); err == nil {
		local.Author = cmp.Or(detail.Author, local.Author)
		return local, nil
	} else if !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	if local, err := l.SavedBook(ctx, detail.Title); err == nil && local.URL == "" {
		local.ID = domain.NewBookID(bookURL)
		local.URL = bookURL
		local.Author = cmp.Or(detail.Author, local.Author)
		return local, nil
	}

	return &domain.Book{
		ID:     domain.NewBookID(bookURL),
		Title:  detail.Title,
		Author: detail.Author,
		URL:    bookURL,
		Saved:  false,
	}, nil
}

func (l *Library) load(ctx context.Context, dirName string) (*domain.Book, error) {
	dir := filepath.Join(l.layout.BooksDir(), dirName)

	files, err := chapters.List(dir)
	if err != nil {
		return nil, err
	}
	record := l.progress.LoadOrDefault(dirName)

	book := &domain.Book{
		ID:       domain.NewBookID(record.BookURL),
		Title:    dirName,
		URL:      record.BookURL,
		Saved:    true,
		Dir:      dir,
		Chapters: make([]domain.Chapter, 0, len(files)),
		Progress: record,
	}

	for _, f := range files {
		ch := domain.Chapter{
			Index:   f.Index(),
			Ordinal: f.Ordinal,
			Name:    f.Name,
			Path:    f.Path,
		}
		var tagTitle string
		if l.probeTags {
			if info, err := images.Probe(ctx, f.Path); err == nil {
				tagTitle = info.Title
				ch.Duration = info.Duration
				if book.Author == "" {
					book.Author = info.Artist
				}
			} else {
				l.logger.Debug("could not probe chapter", "path", f.Path, "error", err)
			}
		}
		ch.Title = chapters.DisplayTitle(f, tagTitle)
		book.Chapters = append(book.Chapters, ch)
	}

	book.CoverPath = l.cover(ctx, dir, files)
	if book.CoverPath != "" {
		hash, err := l.blurhash.Get(book.CoverPath)
		if err != nil {
			l.logger.Debug("could not hash cover", "path", book.CoverPath, "error", err)
		}
		book.CoverBlurHash = hash
	}
	return book, nil
}

// cover returns the cover file, extracting embedded artwork from the first
// chapter when the directory has none.
func (l *Library) cover(ctx context.Context, dir string, files []chapters.File) string {
	if p := cache.FindCover(dir); p != "" {
		return p
	}
	if !l.probeTags || len(files) == 0 {
		return ""
	}
	p, err := images.ExtractArtwork(ctx, files[0].Path, dir, l.logger)
	if err != nil {
		l.logger.Debug("no embedded artwork", "path", files[0].Path, "error", err)
		return ""
	}
	return p
}

