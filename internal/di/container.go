// Package di provides dependency injection configuration for the audiody core.
package di

import (
	"github.com/samber/do/v2"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/config"
	"github.com/audiody/audiody/internal/di/providers"
	"github.com/audiody/audiody/internal/download"
	"github.com/audiody/audiody/internal/library"
	"github.com/audiody/audiody/internal/progress"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments for configuration loading.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, providers.Args(args))

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideLayout)
	do.Provide(injector, providers.ProvideProgressStore)
	do.Provide(injector, providers.ProvideStore)

	// Download layer
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideOrchestrator)
	do.Provide(injector, providers.ProvideTaskPool)

	// Library layer
	do.Provide(injector, providers.ProvideLibrary)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideFileWatcher)

	// Playback
	do.Provide(injector, providers.ProvidePlayer)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. Workers, the watcher, and the HTTP
// server start as their providers run.
func Bootstrap(injector *do.RootScope) error {
	steps := []func() error{
		invoke[*config.Config](injector),
		invoke[*providers.LoggerHandle](injector),
		invoke[cache.Layout](injector),
		invoke[*progress.Store](injector),
		invoke[*providers.StoreHandle](injector),
		invoke[*providers.RateLimiterHandle](injector),
		invoke[*download.Orchestrator](injector),
		invoke[*providers.TaskPoolHandle](injector),
		invoke[*library.Library](injector),
		invoke[*providers.SearchIndexHandle](injector),
		invoke[*providers.FileWatcherHandle](injector),
		invoke[*providers.PlayerHandle](injector),
		invoke[*providers.HTTPServerHandle](injector),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func invoke[T any](injector do.Injector) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
