// Package download makes chapters of a book available in the local cache,
// fetching them from the network only on a cache miss.
package download

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/catalog"
	"github.com/audiody/audiody/internal/chapters"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/media/images"
	"github.com/audiody/audiody/internal/progress"
	"github.com/audiody/audiody/internal/validation"
)

// Request identifies one chapter of one book.
type Request struct {
	Title     string `json:"title" validate:"required,max=512"`
	Chapter   int    `json:"chapter" validate:"gte=0"`
	SourceURL string `json:"source_url" validate:"required,source_url"`
	BookURL   string `json:"book_url,omitempty" validate:"omitempty,source_url"`
}

// CoverFetcher stores a provider thumbnail as the book cover.
type CoverFetcher interface {
	FetchArchiveThumbnail(ctx context.Context, assetURL, dir string) (string, error)
}

// Options configures the orchestrator timeouts. Zero values disable the bound.
type Options struct {
	FetchTimeout time.Duration
	ToolTimeout  time.Duration
}

// Orchestrator ensures chapters exist in the cache.
type Orchestrator struct {
	layout    cache.Layout
	progress  *progress.Store
	fetcher   Fetcher
	extractor Extractor
	covers    CoverFetcher
	validator *validation.Validator
	locks     *bookLocks
	opts      Options
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator. covers may be nil to skip thumbnails.
func NewOrchestrator(
	layout cache.Layout,
	progressStore *progress.Store,
	fetcher Fetcher,
	extractor Extractor,
	covers CoverFetcher,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		layout:    layout,
		progress:  progressStore,
		fetcher:   fetcher,
		extractor: extractor,
		covers:    covers,
		validator: validation.New(),
		locks:     newBookLocks(),
		opts:      opts,
		logger:    logger,
	}
}

// EnsureChapter returns the local path of the requested chapter, downloading
// it first when the cache does not hold it. A cache hit performs no network
// activity. The first call for a book creates its directory and a blank
// progress record carrying the book URL.
func (o *Orchestrator) EnsureChapter(ctx context.Context, req Request) (string, error) {
	if err := o.validator.Validate(req); err != nil {
		return "", err
	}

	dir := o.layout.BookDir(req.Title)
	unlock, err := o.locks.lock(ctx, dir)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "wait for book lock")
	}
	defer unlock()

	if _, err := o.layout.EnsureBookDir(req.Title); err != nil {
		return "", err
	}
	created, err := o.progress.EnsureExists(req.Title, req.BookURL)
	if err != nil {
		return "", err
	}
	if created {
		o.logger.Info("book cache created", "title", req.Title, "dir", dir)
	}

	if path, ok, err := chapters.Resolve(dir, req.Chapter); err != nil {
		return "", err
	} else if ok {
		o.logger.Debug("chapter cache hit", "title", req.Title, "chapter", req.Chapter, "path", path)
		return path, nil
	}

	kind := DetectKind(req.SourceURL)
	o.logger.Info("chapter cache miss",
		"title", req.Title,
		"chapter", req.Chapter,
		"source", kind.String(),
	)

	var path string
	switch kind {
	case KindExtractor:
		path, err = o.extract(ctx, req, dir)
	default:
		path, err = o.fetch(ctx, req, dir, kind)
	}
	if err != nil {
		return "", err
	}

	o.ensureCover(ctx, path, dir)
	return path, nil
}

func (o *Orchestrator) fetch(ctx context.Context, req Request, dir string, kind Kind) (string, error) {
	if kind == KindArchive && o.covers != nil && cache.FindCover(dir) == "" {
		if _, err := o.covers.FetchArchiveThumbnail(ctx, req.SourceURL, dir); err != nil {
			o.logger.Warn("failed to fetch archive thumbnail",
				"title", req.Title,
				"url", req.SourceURL,
				"error", err,
			)
		}
	}

	fetchCtx, cancel := withTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()

	dst := filepath.Join(dir, chapters.FileName(req.Chapter, extensionFor(req.SourceURL)))
	if _, err := o.fetcher.Fetch(fetchCtx, req.SourceURL, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (o *Orchestrator) extract(ctx context.Context, req Request, dir string) (string, error) {
	if o.extractor == nil {
		return "", domainerrors.ExternalToolf("no extractor configured for %s", req.SourceURL)
	}

	toolCtx, cancel := withTimeout(ctx, o.opts.ToolTimeout)
	defer cancel()

	if err := o.extractor.Extract(toolCtx, req.SourceURL, dir); err != nil {
		return "", err
	}

	path, ok, err := chapters.Resolve(dir, req.Chapter)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domainerrors.ExternalToolf("extraction produced no chapter %d for %q", req.Chapter, req.Title)
	}
	return path, nil
}

// ensureCover falls back to artwork embedded in the chapter file. Failures only log.
func (o *Orchestrator) ensureCover(ctx context.Context, chapterPath, dir string) {
	if cache.FindCover(dir) != "" {
		return
	}
	if _, err := images.ExtractArtwork(ctx, chapterPath, dir, o.logger); err != nil {
		o.logger.Debug("no embedded artwork", "path", chapterPath, "error", err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// RequestsFor expands a resolved book into one request per chapter, in order.
func RequestsFor(detail *catalog.BookDetail, bookURL string) []Request {
	if detail == nil {
		return nil
	}
	reqs := make([]Request, 0, len(detail.Chapters))
	for i, ch := range detail.Chapters {
		reqs = append(reqs, Request{
			Title:     detail.Title,
			Chapter:   i,
			SourceURL: ch.URL,
			BookURL:   bookURL,
		})
	}
	return reqs
}
