// Package covers fetches provider thumbnails and stores them as compact cover art.
package covers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/image/draw"

	"github.com/audiody/audiody/internal/cache"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/media/images"
)

const (
	// CoverFile is the name of the transcoded cover inside a book directory.
	CoverFile = "cover.jpg"

	rawFile = "cover.raw"

	defaultMaxSize  = 10 * 1024 * 1024
	defaultTimeout  = 30 * time.Second
	defaultMaxSide  = 600
	defaultQuality  = 75
	archiveThumbRef = "__ia_thumb.jpg"
)

// Limiter throttles requests per remote host.
type Limiter interface {
	WaitURL(ctx context.Context, rawURL string) error
}

// Options configures a Transcoder. Zero values pick the defaults.
type Options struct {
	Client  *http.Client
	Limiter Limiter
	MaxSize int64
	Timeout time.Duration
	MaxSide int
	Quality int
}

// Transcoder downloads a thumbnail, re-encodes it, and drops the raw download.
type Transcoder struct {
	client  *http.Client
	limiter Limiter
	maxSize int64
	timeout time.Duration
	maxSide int
	quality int
	logger  *slog.Logger
}

// NewTranscoder creates a Transcoder.
func NewTranscoder(opts Options, logger *slog.Logger) *Transcoder {
	t := &Transcoder{
		client:  opts.Client,
		limiter: opts.Limiter,
		maxSize: opts.MaxSize,
		timeout: opts.Timeout,
		maxSide: opts.MaxSide,
		quality: opts.Quality,
		logger:  logger,
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.maxSize <= 0 {
		t.maxSize = defaultMaxSize
	}
	if t.timeout <= 0 {
		t.timeout = defaultTimeout
	}
	if t.maxSide <= 0 {
		t.maxSide = defaultMaxSide
	}
	if t.quality <= 0 || t.quality > 100 {
		t.quality = defaultQuality
	}
	return t
}

// ArchiveThumbnailURL derives the sibling thumbnail of an archive asset:
// https://archive.org/download/item/file.mp3 -> https://archive.org/download/item/__ia_thumb.jpg
func ArchiveThumbnailURL(assetURL string) (string, error) {
	u, err := url.Parse(assetURL)
	if err != nil || u.Host == "" {
		return "", domainerrors.Validation("invalid asset URL").WithCause(err)
	}
	u.Path = path.Join(path.Dir(u.Path), archiveThumbRef)
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// FetchArchiveThumbnail stores the thumbnail that sits next to assetURL as dir/cover.jpg.
func (t *Transcoder) FetchArchiveThumbnail(ctx context.Context, assetURL, dir string) (string, error) {
	thumbURL, err := ArchiveThumbnailURL(assetURL)
	if err != nil {
		return "", err
	}
	return t.Fetch(ctx, thumbURL, dir)
}

// Fetch downloads imageURL, writes the raw bytes next to the cover, decodes,
// scales, encodes them as JPEG into dir/cover.jpg, and removes the raw file.
func (t *Transcoder) Fetch(ctx context.Context, imageURL, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if t.limiter != nil {
		if err := t.limiter.WaitURL(ctx, imageURL); err != nil {
			return "", domainerrors.Wrap(err, domainerrors.CodeNetwork, "wait for rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeNetwork, "create thumbnail request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeNetwork, "download thumbnail")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domainerrors.Networkf("thumbnail download failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxSize))
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeNetwork, "read thumbnail")
	}

	rawPath := filepath.Join(dir, rawFile)
	if _, err := cache.WriteFileAtomic(rawPath, bytes.NewReader(data)); err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(rawPath); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("failed to remove raw thumbnail", "path", rawPath, "error", err)
		}
	}()

	coverPath, err := t.transcode(rawPath, filepath.Join(dir, CoverFile))
	if err != nil {
		return "", err
	}

	t.logger.Info("cover stored",
		"url", imageURL,
		"path", coverPath,
		"raw_size", len(data),
	)
	return coverPath, nil
}

func (t *Transcoder) transcode(src, dst string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeFilesystem, "open raw thumbnail")
	}
	defer f.Close()

	img, format, err := images.Decode(f)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeEncode, "decode thumbnail")
	}

	encoded, err := images.EncodeJPEG(images.Fit(img, t.maxSide, draw.CatmullRom), t.quality)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeEncode, fmt.Sprintf("re-encode %s thumbnail", format))
	}

	if _, err := cache.WriteFileAtomic(dst, bytes.NewReader(encoded)); err != nil {
		return "", err
	}
	return dst, nil
}
