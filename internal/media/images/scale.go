// Package images decodes, scales, and fingerprints cover art for cached books.
package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"io"

	_ "golang.org/x/image/webp" // Register WebP decoder
	"golang.org/x/image/draw"
)

// Decode reads any registered raster format (JPEG, PNG, GIF, WebP).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Fit scales img down so neither side exceeds maxSide, keeping aspect ratio.
// Images already within bounds are returned unchanged.
func Fit(img image.Image, maxSide int, scaler draw.Scaler) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}

	var dw, dh int
	if w >= h {
		dw = maxSide
		dh = max(1, h*maxSide/w)
	} else {
		dh = maxSide
		dw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeJPEG encodes img as lossy JPEG at quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
