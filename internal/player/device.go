// Package player owns the audio output device on a single goroutine and
// drives it through an ordered command queue.
package player

import "time"

// Device is an audio output that plays one source at a time. Only the
// actor goroutine calls it.
type Device interface {
	// Load decodes path and makes it the current source, paused at the start.
	// On error the previous source stays loaded.
	Load(path string) error
	Play()
	Pause()
	SetSpeed(ratio float64)
	// SetVolume applies a volume in [0, 100].
	SetVolume(volume float64)
	Seek(pos time.Duration) error
	Position() time.Duration
	// Finished reports whether the current source has played to its end.
	Finished() bool
	Close() error
}
