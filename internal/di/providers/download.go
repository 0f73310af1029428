package providers

import (
	"net/http"

	"github.com/samber/do/v2"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/config"
	"github.com/audiody/audiody/internal/download"
	"github.com/audiody/audiody/internal/media/covers"
	"github.com/audiody/audiody/internal/progress"
	"github.com/audiody/audiody/internal/ratelimit"
	"github.com/audiody/audiody/internal/tasks"
)

const userAgent = "audiody/1.0"

// RateLimiterHandle wraps the per-host limiter so its cleanup goroutine stops.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-host limiter shared by all remote fetches.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Download.HostRate, cfg.Download.HostBurst),
	}, nil
}

// ProvideOrchestrator provides the chapter download orchestrator.
func ProvideOrchestrator(i do.Injector) (*download.Orchestrator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	layout := do.MustInvoke[cache.Layout](i)
	progressStore := do.MustInvoke[*progress.Store](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	client := &http.Client{}

	thumbnails := covers.NewTranscoder(covers.Options{
		Client:  client,
		Limiter: limiter,
		MaxSize: cfg.Download.MaxCoverSize,
		Timeout: cfg.Download.FetchTimeout,
	}, log.WithComponent("covers"))

	fetcher := download.NewHTTPFetcher(client, limiter, userAgent, log.WithComponent("fetch"))

	ytdlp := download.NewYtDlp(cfg.Download.YtDlpPath, cfg.Download.FFmpegPath, log.WithComponent("yt-dlp"))
	if !ytdlp.Available() {
		log.Warn("yt-dlp not found; extractor sources will fail", "path", cfg.Download.YtDlpPath)
	}

	return download.NewOrchestrator(
		layout,
		progressStore,
		fetcher,
		ytdlp,
		thumbnails,
		download.Options{
			FetchTimeout: cfg.Download.FetchTimeout,
			ToolTimeout:  cfg.Download.ToolTimeout,
		},
		log.WithComponent("download"),
	), nil
}

// TaskPoolHandle wraps the download pool with shutdown capability.
type TaskPoolHandle struct {
	*tasks.Pool
}

// Shutdown implements do.Shutdownable.
func (h *TaskPoolHandle) Shutdown() error {
	h.Pool.Shutdown()
	return nil
}

// ProvideTaskPool provides the download worker pool and starts it.
func ProvideTaskPool(i do.Injector) (*TaskPoolHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	orchestrator := do.MustInvoke[*download.Orchestrator](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	pool := tasks.New(orchestrator, storeHandle.Store, tasks.Options{
		Workers: cfg.Download.Workers,
		Timeout: cfg.Download.FetchTimeout + cfg.Download.ToolTimeout,
	}, log.WithComponent("tasks"))

	if err := pool.Start(); err != nil {
		return nil, err
	}

	return &TaskPoolHandle{Pool: pool}, nil
}
