package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/config"
	"github.com/audiody/audiody/internal/playback"
	"github.com/audiody/audiody/internal/player"
	"github.com/audiody/audiody/internal/player/beepdevice"
	"github.com/audiody/audiody/internal/progress"
)

const speakerBuffer = 100 * time.Millisecond

// PlayerHandle holds the audio actor and the session that drives it. Both are
// nil when audio output is disabled or unavailable.
type PlayerHandle struct {
	Actor   *player.Actor
	Session *playback.Session

	log *LoggerHandle
}

// Shutdown saves the position and stops the actor.
func (h *PlayerHandle) Shutdown() error {
	if h.Actor == nil {
		return nil
	}
	if title, chapter, ok := h.Session.Current(); ok {
		if err := h.Session.Checkpoint(context.Background()); err != nil && h.log != nil {
			h.log.Warn("Failed to save progress on shutdown", "book", title, "chapter", chapter, "error", err)
		}
	}
	return h.Actor.Close()
}

// ProvidePlayer provides the audio actor wired to a playback session.
func ProvidePlayer(i do.Injector) (*PlayerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	layout := do.MustInvoke[cache.Layout](i)
	progressStore := do.MustInvoke[*progress.Store](i)

	if !cfg.Player.Enabled {
		log.Info("Audio output disabled")
		return &PlayerHandle{}, nil
	}

	device, err := beepdevice.New(cfg.Player.SampleRate, speakerBuffer)
	if err != nil {
		// A headless machine still serves downloads and the library.
		log.Warn("Audio output unavailable", "error", err)
		return &PlayerHandle{}, nil
	}

	session := playback.NewSession(layout, progressStore, log.WithComponent("playback"))
	actor := player.New(device, player.Options{
		PollInterval: cfg.Player.PollInterval,
		Volume:       &cfg.Player.Volume,
		OnFinished:   session.Advance,
	}, log.WithComponent("player"))
	session.Attach(actor)

	log.Info("Audio output ready", "sample_rate", cfg.Player.SampleRate, "volume", cfg.Player.Volume)
	return &PlayerHandle{Actor: actor, Session: session, log: log}, nil
}
