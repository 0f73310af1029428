package images

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/simonhull/audiometa"

	"github.com/audiody/audiody/internal/cache"
)

// AudioInfo is the subset of embedded metadata the library shows.
type AudioInfo struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// Probe reads tags and duration from an audio file.
func Probe(ctx context.Context, audioPath string) (*AudioInfo, error) {
	file, err := audiometa.OpenContext(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only handle

	return &AudioInfo{
		Title:    file.Tags.Title,
		Artist:   file.Tags.Artist,
		Album:    file.Tags.Album,
		Duration: file.Audio.Duration,
	}, nil
}

// ExtractArtwork writes the first embedded picture of audioPath into dir as
// cover.<ext>. It returns the written path, or "" when the file has no artwork.
func ExtractArtwork(ctx context.Context, audioPath, dir string, logger *slog.Logger) (string, error) {
	file, err := audiometa.OpenContext(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only handle

	artworks, err := file.ExtractArtwork()
	if err != nil {
		return "", fmt.Errorf("extract artwork: %w", err)
	}
	if len(artworks) == 0 || len(artworks[0].Data) == 0 {
		logger.Debug("no embedded cover found",
			"path", audioPath,
			"format", file.Format.String(),
		)
		return "", nil
	}

	data := artworks[0].Data
	ext := ".jpg"
	if http.DetectContentType(data) == "image/png" {
		ext = ".png"
	}

	dst := filepath.Join(dir, "cover"+ext)
	if _, err := cache.WriteFileAtomic(dst, bytes.NewReader(data)); err != nil {
		return "", err
	}

	logger.Debug("extracted embedded cover",
		"path", audioPath,
		"cover", dst,
		"size", len(data),
	)
	return dst, nil
}
