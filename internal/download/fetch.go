package download

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/audiody/audiody/internal/cache"
	domainerrors "github.com/audiody/audiody/internal/errors"
)

// Limiter throttles requests per remote host.
type Limiter interface {
	WaitURL(ctx context.Context, rawURL string) error
}

// Fetcher streams a remote asset into a local file.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dst string) (int64, error)
}

// HTTPFetcher downloads chapter assets over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	limiter   Limiter
	userAgent string
	logger    *slog.Logger
}

// NewHTTPFetcher creates a fetcher. A nil client uses a client without a global
// timeout; callers bound each fetch through the context instead.
func NewHTTPFetcher(client *http.Client, limiter Limiter, userAgent string, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{
		client:    client,
		limiter:   limiter,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch downloads rawURL into dst. Only a 200 response is accepted, and dst is
// written atomically so an interrupted transfer never looks like a cached chapter.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dst string) (int64, error) {
	if f.limiter != nil {
		if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
			return 0, domainerrors.Wrap(err, domainerrors.CodeNetwork, "wait for rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeNetwork, "create request")
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeNetwork, "download chapter")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, domainerrors.Networkf("chapter download failed: status %d", resp.StatusCode)
	}

	n, err := cache.WriteFileAtomic(dst, resp.Body)
	if err != nil {
		if domainerrors.CodeOf(err) == domainerrors.CodeFilesystem {
			return n, err
		}
		return n, domainerrors.Wrap(err, domainerrors.CodeNetwork, "read chapter body")
	}

	f.logger.Info("chapter downloaded",
		"url", rawURL,
		"path", dst,
		"bytes", n,
		"duration", time.Since(start),
	)
	return n, nil
}
