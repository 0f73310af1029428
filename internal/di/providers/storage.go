package providers

import (
	"context"
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/config"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/progress"
	"github.com/audiody/audiody/internal/store"
)

// taskRetention is how long finished download tasks stay in the journal.
const taskRetention = 30 * 24 * time.Hour

// ProvideLayout provides the cache layout and creates the books root.
func ProvideLayout(i do.Injector) (cache.Layout, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	layout := cache.NewLayout(cfg.Library.BooksDir())
	if err := os.MkdirAll(layout.BooksDir(), 0o755); err != nil {
		return cache.Layout{}, domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "create books root %s", layout.BooksDir())
	}

	log.Info("Book cache ready", "path", layout.BooksDir())
	return layout, nil
}

// ProvideProgressStore provides the per-book resume record store.
func ProvideProgressStore(i do.Injector) (*progress.Store, error) {
	layout := do.MustInvoke[cache.Layout](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return progress.NewStore(layout, log.WithComponent("progress")), nil
}

// StoreHandle wraps the task journal with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the download task journal and prunes old tasks.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	db, err := store.Open(cfg.Store.Path, log.WithComponent("store"))
	if err != nil {
		return nil, err
	}

	pruned, err := db.PruneTasks(context.Background(), time.Now().Add(-taskRetention))
	if err != nil {
		log.Warn("Failed to prune task journal", "error", err)
	}

	log.Info("Task journal ready", "path", cfg.Store.Path, "pruned", pruned)
	return &StoreHandle{Store: db}, nil
}
