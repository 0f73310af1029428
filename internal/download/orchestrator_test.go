package download

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/catalog"
	"github.com/audiody/audiody/internal/chapters"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/progress"
)

type fakeExtractor struct {
	calls atomic.Int32
	files []string
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, dir string) error {
	f.calls.Add(1)
	if f.err != nil {
		return f.err
	}
	for _, name := range f.files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, dst string) (int64, error) {
	f.mu.Lock()
	f.urls = append(f.urls, rawURL)
	f.mu.Unlock()
	return 5, os.WriteFile(dst, []byte("audio"), 0o644)
}

type fakeCovers struct {
	err   error
	calls atomic.Int32
}

func (f *fakeCovers) FetchArchiveThumbnail(context.Context, string, string) (string, error) {
	f.calls.Add(1)
	return "", f.err
}

func newTestOrchestrator(t *testing.T, fetcher Fetcher, extractor Extractor, covers CoverFetcher) (*Orchestrator, cache.Layout) {
	t.Helper()
	layout := cache.NewLayout(filepath.Join(t.TempDir(), "books"))
	store := progress.NewStore(layout, slog.New(slog.DiscardHandler))
	o := NewOrchestrator(layout, store, fetcher, extractor, covers,
		Options{FetchTimeout: 5 * time.Second, ToolTimeout: 5 * time.Second},
		slog.New(slog.DiscardHandler))
	return o, layout
}

func TestEnsureChapter_DirectDownloadThenCacheHit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("mp3 bytes"))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.Client(), nil, "", slog.New(slog.DiscardHandler))
	o, layout := newTestOrchestrator(t, fetcher, nil, nil)

	req := Request{
		Title:     "The Republic",
		Chapter:   2,
		SourceURL: srv.URL + "/republic_03.mp3",
		BookURL:   "https://librivox.org/the-republic-by-plato/",
	}

	path, err := o.EnsureChapter(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(layout.BookDir("The Republic"), "chapter_3.mp3"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mp3 bytes", string(data))

	record, err := progress.ReadFile(filepath.Join(layout.BookDir("The Republic"), progress.FileName))
	require.NoError(t, err)
	assert.Equal(t, req.BookURL, record.BookURL)
	assert.Nil(t, record.CurrentChapter)

	again, err := o.EnsureChapter(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestEnsureChapter_CacheHitMakesNoRequest(t *testing.T) {
	fetcher := &fakeFetcher{}
	o, layout := newTestOrchestrator(t, fetcher, nil, nil)

	dir, err := layout.EnsureBookDir("Walden")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "walden-01-thoreau.mp3"), []byte("x"), 0o644))

	path, err := o.EnsureChapter(t.Context(), Request{
		Title:     "Walden",
		Chapter:   0,
		SourceURL: "https://example.com/walden_01.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "walden-01-thoreau.mp3"), path)
	assert.Empty(t, fetcher.urls)
}

func TestEnsureChapter_NonOKStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.Client(), nil, "", slog.New(slog.DiscardHandler))
	o, layout := newTestOrchestrator(t, fetcher, nil, nil)

	_, err := o.EnsureChapter(t.Context(), Request{Title: "Lost", Chapter: 0, SourceURL: srv.URL + "/a.mp3"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNetwork))

	_, ok, err := chapters.Resolve(layout.BookDir("Lost"), 0)
	require.NoError(t, err)
	assert.False(t, ok, "failed download must not leave a chapter file")
}

func TestEnsureChapter_Extractor(t *testing.T) {
	ext := &fakeExtractor{files: []string{"chapter_NA.mp3", "chapter_1.mp3", "chapter_2.mp3"}}
	o, layout := newTestOrchestrator(t, &fakeFetcher{}, ext, nil)

	req := Request{Title: "Lecture", Chapter: 1, SourceURL: "https://www.youtube.com/watch?v=abc"}
	path, err := o.EnsureChapter(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(layout.BookDir("Lecture"), "chapter_2.mp3"), path)

	req.Chapter = 0
	path, err = o.EnsureChapter(t.Context(), req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(layout.BookDir("Lecture"), "chapter_1.mp3"), path)
	assert.Equal(t, int32(1), ext.calls.Load())
}

func TestEnsureChapter_ExtractorMissingChapter(t *testing.T) {
	ext := &fakeExtractor{files: []string{"chapter_1.mp3"}}
	o, _ := newTestOrchestrator(t, &fakeFetcher{}, ext, nil)

	_, err := o.EnsureChapter(t.Context(), Request{Title: "Short", Chapter: 4, SourceURL: "https://youtu.be/abc"})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrExternalTool))
}

func TestEnsureChapter_ArchiveThumbnailFailureIsNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{}
	covers := &fakeCovers{err: domainerrors.Networkf("thumbnail download failed: status 404")}
	o, layout := newTestOrchestrator(t, fetcher, nil, covers)

	path, err := o.EnsureChapter(t.Context(), Request{
		Title:     "Meditations",
		Chapter:   0,
		SourceURL: "https://archive.org/download/meditations/med_01.mp3",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(layout.BookDir("Meditations"), "chapter_1.mp3"), path)
	assert.Equal(t, int32(1), covers.calls.Load())
	assert.Len(t, fetcher.urls, 1)
}

func TestEnsureChapter_Validation(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeFetcher{}, nil, nil)

	tests := []Request{
		{Title: "", Chapter: 0, SourceURL: "https://example.com/a.mp3"},
		{Title: "X", Chapter: -1, SourceURL: "https://example.com/a.mp3"},
		{Title: "X", Chapter: 0, SourceURL: "ftp://example.com/a.mp3"},
	}
	for _, req := range tests {
		_, err := o.EnsureChapter(t.Context(), req)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation), "request %+v", req)
	}
}

func TestEnsureChapter_ConcurrentSameBook(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.Client(), nil, "", slog.New(slog.DiscardHandler))
	o, _ := newTestOrchestrator(t, fetcher, nil, nil)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			_, err := o.EnsureChapter(t.Context(), Request{Title: "Same", Chapter: 0, SourceURL: srv.URL + "/a.mp3"})
			assert.NoError(t, err)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequestsFor(t *testing.T) {
	detail := &catalog.BookDetail{
		Title:    "Odyssey",
		Chapters: []catalog.ChapterRef{{URL: "https://a/1.mp3"}, {URL: "https://a/2.mp3"}},
	}
	reqs := RequestsFor(detail, "https://a/book")
	require.Len(t, reqs, 2)
	assert.Equal(t, 1, reqs[1].Chapter)
	assert.Equal(t, "https://a/2.mp3", reqs[1].SourceURL)
	assert.Nil(t, RequestsFor(nil, ""))
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindExtractor, DetectKind("https://www.youtube.com/watch?v=1"))
	assert.Equal(t, KindExtractor, DetectKind("https://music.youtube.com/watch?v=1"))
	assert.Equal(t, KindExtractor, DetectKind("https://youtu.be/1"))
	assert.Equal(t, KindArchive, DetectKind("https://ia800.us.archive.org/download/x/a.mp3"))
	assert.Equal(t, KindDirect, DetectKind("https://notyoutube.com/a.mp3"))
	assert.Equal(t, KindDirect, DetectKind("://bad"))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".mp3", extensionFor("https://a/b/file"))
	assert.Equal(t, ".m4b", extensionFor("https://a/b/book.M4B?x=1"))
	assert.Equal(t, ".mp3", extensionFor("https://a/b/page.html"))
}
