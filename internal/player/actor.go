package player

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	domainerrors "github.com/audiody/audiody/internal/errors"
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdPlay
	cmdPause
	cmdSpeed
	cmdSeek
	cmdVolume
	cmdSync
)

func (k commandKind) String() string {
	switch k {
	case cmdStart:
		return "start"
	case cmdPlay:
		return "play"
	case cmdPause:
		return "pause"
	case cmdSpeed:
		return "speed"
	case cmdSeek:
		return "seek"
	case cmdVolume:
		return "volume"
	case cmdSync:
		return "sync"
	default:
		return "unknown"
	}
}

type command struct {
	kind  commandKind
	path  string
	value float64
	reply chan error
}

// FinishedFunc is called when a loaded chapter plays to its end. It runs on
// its own goroutine, so it may send commands back to the actor.
type FinishedFunc func(path string, position time.Duration)

// Options configures an Actor.
type Options struct {
	// PollInterval refreshes the position cache while idle between commands.
	// Zero disables polling.
	PollInterval time.Duration
	// Volume is the initial volume in [0, 100]. Nil means full volume.
	Volume     *float64
	OnFinished FinishedFunc
}

// Actor serializes every transport command onto one goroutine that owns the device.
type Actor struct {
	device Device
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	queue  []command
	closed bool
	wake   chan struct{}
	done   chan struct{}

	// Owned by the actor goroutine.
	state Transport

	posMu    sync.Mutex
	snapshot Transport
}

// New starts an actor that owns device.
func New(device Device, opts Options, logger *slog.Logger) *Actor {
	volume := 100.0
	if opts.Volume != nil {
		volume = *opts.Volume
	}
	a := &Actor{
		device: device,
		opts:   opts,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		state: Transport{
			State:  StateIdle,
			Speed:  1,
			Volume: clampVolume(volume),
		},
	}
	a.snapshot = a.state

	go a.loop()
	return a
}

// Start loads path, replacing any current source, and leaves it paused.
// It waits for the load so a decode failure reaches the caller.
func (a *Actor) Start(ctx context.Context, path string) error {
	reply := make(chan error, 1)
	if err := a.send(command{kind: cmdStart, path: path, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play resumes a loaded or paused source.
func (a *Actor) Play() error { return a.send(command{kind: cmdPlay}) }

// Pause pauses a playing source, retaining its position.
func (a *Actor) Pause() error { return a.send(command{kind: cmdPause}) }

// SetSpeed sets the playback rate multiplier.
func (a *Actor) SetSpeed(ratio float64) error {
	return a.send(command{kind: cmdSpeed, value: ratio})
}

// SeekRelative moves the position by delta seconds, never below zero.
func (a *Actor) SeekRelative(delta float64) error {
	return a.send(command{kind: cmdSeek, value: delta})
}

// SetVolume sets the volume, clamped to [0, 100].
func (a *Actor) SetVolume(volume float64) error {
	return a.send(command{kind: cmdVolume, value: volume})
}

// Sync waits until every command sent before it has been applied.
func (a *Actor) Sync(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := a.send(command{kind: cmdSync, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Position returns the cached position. It is only as fresh as the last
// processed command or poll tick.
func (a *Actor) Position() time.Duration {
	a.posMu.Lock()
	defer a.posMu.Unlock()
	return time.Duration(a.snapshot.Position * float64(time.Second))
}

// State returns the cached transport snapshot.
func (a *Actor) State() Transport {
	a.posMu.Lock()
	defer a.posMu.Unlock()
	return a.snapshot
}

// Close stops accepting commands, lets queued ones drain, releases the
// device, and waits for the actor goroutine to exit.
func (a *Actor) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		a.signal()
	}
	a.mu.Unlock()

	<-a.done
	return nil
}

// Done is closed once the actor goroutine has exited.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

func (a *Actor) send(cmd command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return domainerrors.ErrChannelClosed
	}
	a.queue = append(a.queue, cmd)
	a.signal()
	return nil
}

func (a *Actor) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest command. ok is false when the queue is empty;
// closed reports whether the actor should exit once it is.
func (a *Actor) next() (cmd command, ok, closed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return command{}, false, a.closed
	}
	cmd = a.queue[0]
	a.queue[0] = command{}
	a.queue = a.queue[1:]
	return cmd, true, false
}

func (a *Actor) loop() {
	defer close(a.done)
	a.device.SetVolume(a.state.Volume)
	defer func() {
		if err := a.device.Close(); err != nil {
			a.logger.Warn("failed to close audio device", "error", err)
		}
		a.logger.Debug("player stopped")
	}()

	var tick <-chan time.Time
	if a.opts.PollInterval > 0 {
		ticker := time.NewTicker(a.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-a.wake:
		case <-tick:
			a.poll()
			continue
		}

		for {
			cmd, ok, closed := a.next()
			if closed {
				return
			}
			if !ok {
				break
			}
			a.apply(cmd)
			a.publish()
		}
	}
}

func (a *Actor) apply(cmd command) {
	var err error
	switch cmd.kind {
	case cmdSpeed, cmdSeek, cmdVolume:
		if math.IsNaN(cmd.value) || math.IsInf(cmd.value, 0) {
			a.ignored(cmd)
			a.reply(cmd, nil)
			return
		}
	}

	switch cmd.kind {
	case cmdStart:
		err = a.start(cmd.path)
	case cmdPlay:
		if a.state.State == StateLoaded || a.state.State == StatePaused {
			a.device.Play()
			a.setState(StatePlaying)
		} else {
			a.ignored(cmd)
		}
	case cmdPause:
		if a.state.State == StatePlaying {
			a.device.Pause()
			a.refreshPosition()
			a.setState(StatePaused)
		} else {
			a.ignored(cmd)
		}
	case cmdSpeed:
		if a.state.State == StateIdle || cmd.value <= 0 {
			a.ignored(cmd)
			break
		}
		a.device.SetSpeed(cmd.value)
		a.state.Speed = cmd.value
	case cmdSeek:
		if a.state.State == StateIdle {
			a.ignored(cmd)
			break
		}
		a.refreshPosition()
		target := max(0, a.state.Position+cmd.value)
		if err := a.device.Seek(time.Duration(target * float64(time.Second))); err != nil {
			a.logger.Warn("seek failed", "target", target, "error", err)
		}
	case cmdVolume:
		v := clampVolume(cmd.value)
		a.device.SetVolume(v)
		a.state.Volume = v
	case cmdSync:
	}

	if a.state.State != StateIdle {
		a.refreshPosition()
	}
	a.reply(cmd, err)
}

func (a *Actor) reply(cmd command, err error) {
	if cmd.reply != nil {
		cmd.reply <- err
	}
}

func (a *Actor) start(path string) error {
	if err := a.device.Load(path); err != nil {
		a.logger.Warn("failed to load chapter", "path", path, "error", err)
		if domainerrors.CodeOf(err) != domainerrors.CodeInternal {
			return err
		}
		return domainerrors.Wrapf(err, domainerrors.CodeEncode, "decode %s", path)
	}

	// A new source inherits the current rate and volume.
	a.device.SetSpeed(a.state.Speed)
	a.device.SetVolume(a.state.Volume)

	a.state.LoadedPath = path
	a.state.Position = 0
	a.setState(StateLoaded)
	a.logger.Info("chapter loaded", "path", path)
	return nil
}

func (a *Actor) poll() {
	if a.state.State != StatePlaying {
		return
	}
	a.refreshPosition()
	if a.device.Finished() {
		a.setState(StatePaused)
		if hook := a.opts.OnFinished; hook != nil {
			path, pos := a.state.LoadedPath, a.device.Position()
			go hook(path, pos)
		}
		a.logger.Debug("chapter finished", "path", a.state.LoadedPath)
	}
	a.publish()
}

func (a *Actor) setState(s State) {
	a.state.State = s
	a.state.Playing = s == StatePlaying
}

func (a *Actor) refreshPosition() {
	a.state.Position = a.device.Position().Seconds()
}

func (a *Actor) publish() {
	a.posMu.Lock()
	a.snapshot = a.state
	a.posMu.Unlock()
}

func (a *Actor) ignored(cmd command) {
	a.logger.Debug("command ignored", "command", cmd.kind.String(), "state", string(a.state.State))
}
