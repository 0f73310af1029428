// Package watcher reports settled changes to book directories under the books
// root, so the library view can be refreshed without rescanning on a timer.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the books root and each book directory one level below it.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	root    string
	known   map[string]bool        // book directories seen so far
	pending map[string]*time.Timer // book -> settle timer
	mu      sync.Mutex

	events   chan Event
	errors   chan error
	done     chan struct{}
	stopOnce sync.Once

	// sendMu guards sends against Stop closing the channels.
	sendMu sync.RWMutex
	closed bool
}

// New creates a watcher. Call Watch and then Start.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		watcher: fw,
		known:   make(map[string]bool),
		pending: make(map[string]*time.Timer),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch sets the books root and watches it plus every existing book directory.
func (w *Watcher) Watch(root string) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat books root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("books root %s is not a directory", root)
	}

	if err := w.watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch books root: %w", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read books root: %w", err)
	}

	w.mu.Lock()
	w.root = root
	w.mu.Unlock()

	for _, e := range entries {
		if e.IsDir() && !w.opts.shouldIgnore(e.Name()) {
			w.addBook(e.Name())
		}
	}
	w.logger.Debug("watching books root", "path", root, "books", len(entries))
	return nil
}

func (w *Watcher) addBook(book string) {
	path := filepath.Join(w.root, book)
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("failed to add watch", "path", path, "error", err)
		return
	}
	w.mu.Lock()
	w.known[book] = true
	w.mu.Unlock()
}

// Start processes events until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.report(err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	if w.opts.shouldIgnore(rel) {
		return
	}

	book, _, nested := strings.Cut(rel, string(filepath.Separator))
	if !nested && event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addBook(book)
		}
	}
	w.settle(book)
}

// settle restarts the quiet period for book.
func (w *Watcher) settle(book string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[book]; ok {
		t.Stop()
	}
	w.pending[book] = time.AfterFunc(w.opts.SettleDelay, func() {
		w.fire(book)
	})
}

func (w *Watcher) fire(book string) {
	path := filepath.Join(w.root, book)

	w.mu.Lock()
	delete(w.pending, book)
	wasKnown := w.known[book]
	info, err := os.Stat(path)
	exists := err == nil && info.IsDir()

	var ev Event
	switch {
	case !exists && !wasKnown:
		w.mu.Unlock()
		return
	case !exists:
		delete(w.known, book)
		ev = Event{Type: EventRemoved, Book: book, Path: path}
	case !wasKnown:
		w.known[book] = true
		ev = Event{Type: EventAdded, Book: book, Path: path}
	default:
		ev = Event{Type: EventModified, Book: book, Path: path}
	}
	w.mu.Unlock()

	w.emit(ev)
}

func (w *Watcher) emit(ev Event) {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

func (w *Watcher) report(err error) {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("dropping watcher error", "error", err)
	}
}

// Events returns settled book events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns errors reported by the underlying watcher.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watcher. Events and Errors are closed once it returns.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.watcher.Close()

		w.sendMu.Lock()
		w.closed = true
		close(w.events)
		close(w.errors)
		w.sendMu.Unlock()
	})
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
