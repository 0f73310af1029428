package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
)

func newTestStore(t *testing.T) (*Store, cache.Layout) {
	t.Helper()
	layout := cache.NewLayout(filepath.Join(t.TempDir(), "books"))
	return NewStore(layout, nil), layout
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("The Republic", domain.Ptr(1), "https://x/b", domain.Ptr(120.5)))

	record, err := store.Load("The Republic")
	require.NoError(t, err)
	assert.Equal(t, "https://x/b", record.BookURL)
	require.NotNil(t, record.CurrentChapter)
	assert.Equal(t, 1, *record.CurrentChapter)
	require.NotNil(t, record.CurrentChapterTime)
	assert.Equal(t, 120.5, *record.CurrentChapterTime)
}

func TestSave_OverwritesWholeRecord(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("Meditations", domain.Ptr(4), "https://x/m", domain.Ptr(33.0)))
	require.NoError(t, store.Save("Meditations", nil, "https://x/m2", nil))

	record, err := store.Load("Meditations")
	require.NoError(t, err)
	assert.Equal(t, "https://x/m2", record.BookURL)
	assert.Nil(t, record.CurrentChapter)
	assert.Nil(t, record.CurrentChapterTime)
}

func TestSave_WritesNullsForMissingFields(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Save("Meditations", nil, "https://x/m", nil))

	data, err := os.ReadFile(store.Path("Meditations"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"book_url":"https://x/m","current_chapter":null,"current_chapter_time":null}`, string(data))
}

func TestLoad_MissingIsNotFound(t *testing.T) {
	store, layout := newTestStore(t)

	_, err := store.Load("Nobody")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = layout.EnsureBookDir("Empty")
	require.NoError(t, err)
	_, err = store.Load("Empty")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestLoad_MalformedIsParseError(t *testing.T) {
	store, layout := newTestStore(t)

	dir, err := layout.EnsureBookDir("Broken")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))

	_, err = store.Load("Broken")
	assert.ErrorIs(t, err, domainerrors.ErrParse)

	assert.Equal(t, domain.ProgressRecord{}, store.LoadOrDefault("Broken"))
}

func TestLoadOrDefault_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Equal(t, domain.ProgressRecord{}, store.LoadOrDefault("Nobody"))
}

func TestEnsureExists_OnlyFirstTouchCreates(t *testing.T) {
	store, _ := newTestStore(t)

	created, err := store.EnsureExists("Republic", "https://x/r")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, store.Save("Republic", domain.Ptr(2), "https://x/r", domain.Ptr(10.0)))

	created, err = store.EnsureExists("Republic", "https://x/other")
	require.NoError(t, err)
	assert.False(t, created)

	record, err := store.Load("Republic")
	require.NoError(t, err)
	assert.Equal(t, 2, *record.CurrentChapter)
	assert.Equal(t, "https://x/r", record.BookURL)
}
