package search

import (
	"context"
	"log/slog"

	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/watcher"
)

// BookLoader loads one saved book by its directory name.
type BookLoader interface {
	SavedBook(ctx context.Context, title string) (*domain.Book, error)
}

// RunIndexer keeps the index in step with book directory events until ctx is
// done or events is closed.
func RunIndexer(ctx context.Context, events <-chan watcher.Event, idx *Index, books BookLoader, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := apply(ctx, ev, idx, books); err != nil {
				logger.Warn("failed to update search index",
					"book", ev.Book,
					"event", ev.Type.String(),
					"error", err,
				)
				continue
			}
			logger.Debug("search index updated", "book", ev.Book, "event", ev.Type.String())
		}
	}
}

func apply(ctx context.Context, ev watcher.Event, idx *Index, books BookLoader) error {
	if ev.Type == watcher.EventRemoved {
		return idx.DeleteBook(ev.Book)
	}

	book, err := books.SavedBook(ctx, ev.Book)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		// Removed again before it settled.
		return idx.DeleteBook(ev.Book)
	}
	if err != nil {
		return err
	}
	return idx.IndexBook(book)
}
