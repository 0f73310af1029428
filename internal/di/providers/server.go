package providers

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/audiody/audiody/internal/api"
	"github.com/audiody/audiody/internal/config"
	"github.com/audiody/audiody/internal/domain"
	"github.com/audiody/audiody/internal/library"
	"github.com/audiody/audiody/internal/progress"
)

// HTTPServerHandle wraps http.Server with Shutdownable. Server is nil when
// the control API is disabled.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	if h.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the control API server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	if !cfg.Server.Enabled {
		log.Info("Control API disabled")
		return &HTTPServerHandle{}, nil
	}

	lib := do.MustInvoke[*library.Library](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	poolHandle := do.MustInvoke[*TaskPoolHandle](i)
	playerHandle := do.MustInvoke[*PlayerHandle](i)
	progressStore := do.MustInvoke[*progress.Store](i)

	services := &api.Services{
		Library:   lib,
		Search:    indexHandle.Index,
		Downloads: poolHandle.Pool,
		Progress:  progressStore,
	}
	// Typed nils would make the interfaces non-nil.
	if playerHandle.Actor != nil {
		services.Player = playerHandle.Actor
		services.Session = playerHandle.Session
	}

	handler := api.NewServer(services, cfg.Server, log.WithComponent("api"))
	handler.SetDownloadCallback(func(task domain.DownloadTask) {
		if task.Status != domain.TaskStatusCompleted {
			log.Warn("Download finished without a chapter",
				"task_id", task.ID,
				"book", task.BookTitle,
				"chapter", task.Chapter,
				"status", task.Status,
				"error", task.Error,
			)
			return
		}
		log.Info("Chapter downloaded", "task_id", task.ID, "book", task.BookTitle, "chapter", task.Chapter)

		// Keep search current when the watcher is off.
		if cfg.Library.Watch {
			return
		}
		book, err := lib.SavedBook(context.Background(), task.BookTitle)
		if err == nil {
			err = indexHandle.IndexBook(book)
		}
		if err != nil {
			log.Warn("Failed to index downloaded book", "book", task.BookTitle, "error", err)
		}
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Bind before returning so a busy port fails startup.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Control API listening", "addr", ln.Addr().String())

	return &HTTPServerHandle{Server: srv}, nil
}
