// Package main provides the entry point for the audiody core: the download
// pool, the local player, and the control API.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/audiody/audiody/internal/di"
	"github.com/audiody/audiody/internal/di/providers"
)

func main() {
	injector := di.NewContainer(os.Args[1:])

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start audiody: %v\n", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}

	log := do.MustInvoke[*providers.LoggerHandle](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info("Shutting down", "signal", sig.String())

	// The container shuts services down in reverse dependency order: the
	// server stops accepting requests before the pool and journal close.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
}
