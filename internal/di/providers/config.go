// Package providers contains dependency injection providers for the audiody core.
package providers

import (
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/audiody/audiody/internal/config"
	"github.com/audiody/audiody/internal/logger"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// Args are the command-line arguments passed to config loading.
type Args []string

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	args, err := do.Invoke[Args](i)
	if err != nil {
		args = Args(os.Args[1:])
	}
	return config.LoadConfig(args)
}

// LoggerHandle wraps the logger so an optional log file is closed on shutdown.
type LoggerHandle struct {
	*logger.Logger
}

// Shutdown implements do.Shutdownable.
func (h *LoggerHandle) Shutdown() error {
	return h.Close()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*LoggerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		File:        cfg.Logger.File,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting audiody",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"root", cfg.Library.Root,
		"workers", cfg.Download.Workers,
	)

	return &LoggerHandle{Logger: log}, nil
}
