package covers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/logger"
	"github.com/audiody/audiody/internal/media/images"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestArchiveThumbnailURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://archive.org/download/republic_0901_librivox/republic_01_plato_64kb.mp3",
			"https://archive.org/download/republic_0901_librivox/__ia_thumb.jpg",
		},
		{
			"https://ia800.us.archive.org/12/items/x/y.mp3?download=1#t",
			"https://ia800.us.archive.org/12/items/x/__ia_thumb.jpg",
		},
	}

	for _, tt := range tests {
		got, err := ArchiveThumbnailURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ArchiveThumbnailURL("::not a url")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestFetchArchiveThumbnail_TranscodesAndRemovesRaw(t *testing.T) {
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(pngBytes(t, 1000, 800))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tr := NewTranscoder(Options{Client: srv.Client()}, logger.Nop().Logger)

	cover, err := tr.FetchArchiveThumbnail(context.Background(), srv.URL+"/download/item/chapter_01.mp3", dir)
	require.NoError(t, err)
	assert.Equal(t, "/download/item/__ia_thumb.jpg", requested)
	assert.Equal(t, filepath.Join(dir, CoverFile), cover)

	f, err := os.Open(cover)
	require.NoError(t, err)
	defer f.Close()
	img, format, err := images.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "raw intermediate must be deleted")
}

func TestFetch_NonOKStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewTranscoder(Options{Client: srv.Client()}, logger.Nop().Logger)
	_, err := tr.Fetch(context.Background(), srv.URL+"/x.jpg", t.TempDir())

	assert.ErrorIs(t, err, domainerrors.ErrNetwork)
}

func TestFetch_UndecodableIsEncodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tr := NewTranscoder(Options{Client: srv.Client()}, logger.Nop().Logger)
	_, err := tr.Fetch(context.Background(), srv.URL+"/x.jpg", dir)

	assert.ErrorIs(t, err, domainerrors.ErrEncode)
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
