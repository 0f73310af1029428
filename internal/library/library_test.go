package library

import (
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/catalog"
	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/progress"
)

type fixture struct {
	layout   cache.Layout
	progress *progress.Store
	lib      *Library
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout := cache.NewLayout(filepath.Join(t.TempDir(), "books"))
	store := progress.NewStore(layout, slog.New(slog.DiscardHandler))
	return &fixture{
		layout:   layout,
		progress: store,
		lib:      New(layout, store, slog.New(slog.DiscardHandler)),
	}
}

func (f *fixture) book(t *testing.T, title string, files ...string) string {
	t.Helper()
	dir, err := f.layout.EnsureBookDir(title)
	require.NoError(t, err)
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("not really audio"), 0o644))
	}
	return dir
}

func TestSavedBook_TheRepublic(t *testing.T) {
	f := newFixture(t)
	f.book(t, "The Republic", "chapter_1.mp3", "chapter_2.mp3", "chapter_3_NA.mp3")
	require.NoError(t, os.WriteFile(
		filepath.Join(f.layout.BookDir("The Republic"), progress.FileName),
		[]byte(`{"book_url":"https://x/b","current_chapter":1,"current_chapter_time":120.5}`),
		0o644,
	))

	book, err := f.lib.SavedBook(t.Context(), "The Republic")
	require.NoError(t, err)

	assert.True(t, book.Saved)
	assert.Equal(t, "https://x/b", book.URL)
	assert.Equal(t, domain.NewBookID("https://x/b"), book.ID)
	require.Len(t, book.Chapters, 2)
	assert.Equal(t, 1, book.Chapters[0].Ordinal)
	assert.Equal(t, 0, book.Chapters[0].Index)
	assert.Equal(t, 2, book.Chapters[1].Ordinal)
	assert.Equal(t, "Chapter 2", book.Chapters[1].Title)
	require.NotNil(t, book.Progress.CurrentChapter)
	assert.Equal(t, 1, *book.Progress.CurrentChapter)
	assert.InDelta(t, 120.5, *book.Progress.CurrentChapterTime, 1e-9)
}

func TestSavedBook_NotSaved(t *testing.T) {
	f := newFixture(t)
	_, err := f.lib.SavedBook(t.Context(), "Missing")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestSavedBook_CorruptRecordYieldsBlank(t *testing.T) {
	f := newFixture(t)
	dir := f.book(t, "Walden", "walden-01-thoreau.mp3")
	require.NoError(t, os.WriteFile(filepath.Join(dir, progress.FileName), []byte("{not json"), 0o644))

	book, err := f.lib.SavedBook(t.Context(), "Walden")
	require.NoError(t, err)
	assert.Nil(t, book.Progress.CurrentChapter)
	assert.Empty(t, book.URL)
	assert.Empty(t, book.ID)
	require.Len(t, book.Chapters, 1)
	assert.Equal(t, 1, book.Chapters[0].Ordinal)
}

func TestSavedBooks_SortedAndSkipsHidden(t *testing.T) {
	f := newFixture(t)
	f.book(t, "walden", "chapter_1.mp3")
	f.book(t, "Aeneid", "chapter_1.mp3")
	require.NoError(t, os.MkdirAll(filepath.Join(f.layout.BooksDir(), ".trash"), 0o755))

	books, err := f.lib.SavedBooks(t.Context())
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Aeneid", books[0].Title)
	assert.Equal(t, "walden", books[1].Title)
}

func TestSavedBooks_MissingRoot(t *testing.T) {
	f := newFixture(t)
	books, err := f.lib.SavedBooks(t.Context())
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestSavedBook_CoverAndBlurHash(t *testing.T) {
	f := newFixture(t)
	dir := f.book(t, "Odyssey", "chapter_1.mp3")

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	out, err := os.Create(filepath.Join(dir, "cover.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, img))
	require.NoError(t, out.Close())

	book, err := f.lib.SavedBook(t.Context(), "Odyssey")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cover.png"), book.CoverPath)
	assert.NotEmpty(t, book.CoverBlurHash)
}

func TestSavedBookByURL(t *testing.T) {
	f := newFixture(t)
	f.book(t, "The Republic", "chapter_1.mp3")
	require.NoError(t, f.progress.Save("The Republic", nil, "https://librivox.org/the-republic/", nil))

	book, err := f.lib.SavedBookByURL(t.Context(), "HTTPS://LibriVox.org/the-republic")
	require.NoError(t, err)
	assert.Equal(t, "The Republic", book.Title)

	_, err = f.lib.SavedBookByURL(t.Context(), "https://librivox.org/other")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	f.book(t, "Local Title", "chapter_1.mp3")
	require.NoError(t, f.progress.Save("Local Title", nil, "https://x/b", nil))

	byURL, err := f.lib.Reconcile(t.Context(), &catalog.BookDetail{Title: "Remote Title", Author: "Plato"}, "https://x/b")
	require.NoError(t, err)
	assert.True(t, byURL.Saved)
	assert.Equal(t, "Local Title", byURL.Title)
	assert.Equal(t, "Plato", byURL.Author)

	remote, err := f.lib.Reconcile(t.Context(), &catalog.BookDetail{Title: "Unsaved"}, "https://x/other")
	require.NoError(t, err)
	assert.False(t, remote.Saved)
	assert.Equal(t, domain.NewBookID("https://x/other"), remote.ID)

	_, err = f.lib.Reconcile(t.Context(), nil, "https://x/b")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}
