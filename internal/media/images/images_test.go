package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 1200, 600, 600, 300},
		{"portrait", 300, 900, 200, 600},
		{"already small", 100, 50, 100, 50},
		{"very thin", 3000, 2, 600, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(gradient(tt.w, tt.h), 600, draw.ApproxBiLinear)
			assert.Equal(t, tt.wantW, got.Bounds().Dx())
			assert.Equal(t, tt.wantH, got.Bounds().Dy())
		})
	}
}

func TestEncodeJPEG_Decodes(t *testing.T) {
	data, err := EncodeJPEG(gradient(64, 48), 75)
	require.NoError(t, err)

	img, format, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestComputeBlurHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	writePNG(t, path, gradient(300, 400))

	hash, err := ComputeBlurHash(path)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	again, err := ComputeBlurHash(path)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}

func TestComputeBlurHash_MissingFile(t *testing.T) {
	_, err := ComputeBlurHash(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestBlurHashCache_RecomputesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	writePNG(t, path, gradient(80, 80))

	cache := NewBlurHashCache()
	first, err := cache.Get(path)
	require.NoError(t, err)

	solid := image.NewRGBA(image.Rect(0, 0, 10, 10))
	draw.Draw(solid, solid.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	writePNG(t, path, solid)
	require.NoError(t, os.Chtimes(path, time.Now().Add(time.Minute), time.Now().Add(time.Minute)))

	second, err := cache.Get(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, cache.hashes, 1)
}
