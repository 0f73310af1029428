package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/config"
	"github.com/audiody/audiody/internal/library"
	"github.com/audiody/audiody/internal/progress"
	"github.com/audiody/audiody/internal/search"
	"github.com/audiody/audiody/internal/watcher"
)

// ProvideLibrary provides the saved-book listing.
func ProvideLibrary(i do.Injector) (*library.Library, error) {
	log := do.MustInvoke[*LoggerHandle](i)
	layout := do.MustInvoke[cache.Layout](i)
	progressStore := do.MustInvoke[*progress.Store](i)

	return library.New(layout, progressStore, log.WithComponent("library")), nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the in-memory index of saved books, filled in
// the background.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	log := do.MustInvoke[*LoggerHandle](i)
	lib := do.MustInvoke[*library.Library](i)

	index, err := search.NewIndex(log.WithComponent("search"))
	if err != nil {
		return nil, err
	}

	go func() {
		if err := index.Rebuild(context.Background(), lib); err != nil {
			log.Warn("Initial search index build failed", "error", err)
			return
		}
		count, _ := index.Count()
		log.Info("Search index built", "documents", count)
	}()

	return &SearchIndexHandle{Index: index}, nil
}

// FileWatcherHandle wraps the books root watcher with shutdown capability.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Stop()
}

// ProvideFileWatcher watches the books root and keeps the search index current.
// It is inert when watching is disabled.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	layout := do.MustInvoke[cache.Layout](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	lib := do.MustInvoke[*library.Library](i)

	if !cfg.Library.Watch {
		log.Info("Library watching disabled")
		return &FileWatcherHandle{}, nil
	}

	w, err := watcher.New(log.WithComponent("watcher"), watcher.Options{})
	if err != nil {
		return nil, err
	}
	if err := w.Watch(layout.BooksDir()); err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("File watcher error", "error", err)
		}
	}()

	go search.RunIndexer(ctx, w.Events(), indexHandle.Index, lib, log.WithComponent("indexer"))

	go func() {
		for {
			select {
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				log.Warn("file watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Watching books root", "path", layout.BooksDir())

	return &FileWatcherHandle{Watcher: w, cancel: cancel}, nil
}
