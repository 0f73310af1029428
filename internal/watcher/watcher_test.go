package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()

	w, err := New(slog.New(slog.DiscardHandler), Options{SettleDelay: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Watch(root))

	go func() { _ = w.Start(t.Context()) }()
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestWatcher_NewBookSettlesIntoOneEvent(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	dir := filepath.Join(root, "The Republic")
	require.NoError(t, os.Mkdir(dir, 0o755))
	time.Sleep(20 * time.Millisecond)
	for _, name := range []string{"chapter_1.mp3", "chapter_2.mp3", "settings.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	ev := nextEvent(t, w)
	assert.Equal(t, EventAdded, ev.Type)
	assert.Equal(t, "The Republic", ev.Book)
	assert.Equal(t, dir, ev.Path)

	select {
	case extra := <-w.Events():
		t.Fatalf("unexpected extra event %v for %s", extra.Type, extra.Book)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_ExistingBookModifiedAndRemoved(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Meditations")
	require.NoError(t, os.Mkdir(dir, 0o755))

	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "chapter_1.mp3"), []byte("x"), 0o644))
	ev := nextEvent(t, w)
	assert.Equal(t, EventModified, ev.Type)
	assert.Equal(t, "Meditations", ev.Book)

	require.NoError(t, os.RemoveAll(dir))
	ev = nextEvent(t, w)
	assert.Equal(t, EventRemoved, ev.Type)
	assert.Equal(t, "Meditations", ev.Book)
}

func TestWatcher_IgnoresPartialDownloads(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Meditations")
	require.NoError(t, os.Mkdir(dir, 0o755))

	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".chapter_1.mp3.42.part"), []byte("x"), 0o644))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %v for %s", ev.Type, ev.Book)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_WatchRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	w, err := New(slog.New(slog.DiscardHandler), Options{})
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Watch(file))
	assert.Error(t, w.Watch(filepath.Join(file, "missing")))
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(slog.New(slog.DiscardHandler), Options{})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "added", EventAdded.String())
	assert.Equal(t, "modified", EventModified.String())
	assert.Equal(t, "removed", EventRemoved.String())
	assert.Equal(t, "unknown", EventType(9).String())
}
