// Package beepdevice plays chapters on the system speaker with gopxl/beep.
package beepdevice

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	domainerrors "github.com/audiody/audiody/internal/errors"
)

const resampleQuality = 4

// Device drives the speaker. It is not safe for concurrent use; the player
// actor is its only caller.
type Device struct {
	sampleRate beep.SampleRate

	stream    beep.StreamSeekCloser
	format    beep.Format
	ctrl      *beep.Ctrl
	resampler *beep.Resampler
	volume    *effects.Volume

	speed    float64
	level    float64
	finished atomic.Bool
}

// New initializes the speaker at sampleRate with the given buffer length.
func New(sampleRate int, buffer time.Duration) (*Device, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(buffer)); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "initialize speaker")
	}
	return &Device{sampleRate: sr, speed: 1, level: 100}, nil
}

// Load decodes path and mounts it paused. The current source survives a failed decode.
func (d *Device) Load(path string) error {
	stream, format, err := decode(path)
	if err != nil {
		return err
	}

	speaker.Clear()
	if d.stream != nil {
		_ = d.stream.Close()
	}

	d.stream = stream
	d.format = format
	d.ctrl = &beep.Ctrl{Streamer: stream, Paused: true}
	d.resampler = beep.ResampleRatio(resampleQuality, d.baseRatio()*d.speed, d.ctrl)
	d.volume = &effects.Volume{Streamer: d.resampler, Base: 2}
	d.applyVolume()
	d.mount()
	return nil
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "open %s", path)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".flac":
		stream, format, err = flac.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	default:
		_ = f.Close()
		return nil, beep.Format{}, domainerrors.Wrapf(fmt.Errorf("unsupported format %q", ext),
			domainerrors.CodeEncode, "decode %s", path)
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, domainerrors.Wrapf(err, domainerrors.CodeEncode, "decode %s", path)
	}
	return stream, format, nil
}

// mount hands the current chain to the speaker, followed by an end marker.
func (d *Device) mount() {
	d.finished.Store(false)
	speaker.Play(beep.Seq(d.volume, beep.Callback(func() {
		d.finished.Store(true)
	})))
}

func (d *Device) baseRatio() float64 {
	return float64(d.format.SampleRate) / float64(d.sampleRate)
}

func (d *Device) Play() {
	if d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()
}

func (d *Device) Pause() {
	if d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
}

func (d *Device) SetSpeed(ratio float64) {
	d.speed = ratio
	if d.resampler == nil {
		return
	}
	speaker.Lock()
	d.resampler.SetRatio(d.baseRatio() * ratio)
	speaker.Unlock()
}

func (d *Device) SetVolume(volume float64) {
	d.level = volume
	if d.volume == nil {
		return
	}
	speaker.Lock()
	d.applyVolume()
	speaker.Unlock()
}

// applyVolume maps [0, 100] onto a base-2 gain where 100 is unity.
func (d *Device) applyVolume() {
	d.volume.Silent = d.level <= 0
	if d.level > 0 {
		d.volume.Volume = math.Log2(d.level / 100)
	}
}

// Seek moves to pos, stopping at the end of the stream.
func (d *Device) Seek(pos time.Duration) error {
	if d.stream == nil {
		return domainerrors.InvalidStatef("no source loaded")
	}

	speaker.Lock()
	n := min(d.format.SampleRate.N(pos), d.stream.Len())
	err := d.stream.Seek(n)
	speaker.Unlock()
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "seek")
	}

	if d.finished.Load() && n < d.stream.Len() {
		d.mount()
	}
	return nil
}

func (d *Device) Position() time.Duration {
	if d.stream == nil {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return d.format.SampleRate.D(d.stream.Position())
}

func (d *Device) Finished() bool {
	return d.finished.Load()
}

func (d *Device) Close() error {
	speaker.Clear()
	var err error
	if d.stream != nil {
		err = d.stream.Close()
		d.stream = nil
	}
	speaker.Close()
	return err
}
