// Package playback ties the player to the progress store: it opens chapters
// at their saved offset and checkpoints the position back to disk.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/audiody/audiody/internal/cache"
	"github.com/audiody/audiody/internal/chapters"
	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/id"
	"github.com/audiody/audiody/internal/player"
	"github.com/audiody/audiody/internal/progress"
)

// Player is the subset of the actor a session drives.
type Player interface {
	Start(ctx context.Context, path string) error
	Play() error
	SeekRelative(delta float64) error
	Sync(ctx context.Context) error
	State() player.Transport
}

// Session tracks which book and chapter the player holds.
type Session struct {
	layout   cache.Layout
	progress *progress.Store
	player   Player
	logger   *slog.Logger

	mu      sync.Mutex
	id      string
	title   string
	bookURL string
	chapter int
	open    bool
}

// NewSession creates a session. Call Attach after the player exists if the
// player's finished hook should advance the session.
func NewSession(layout cache.Layout, progressStore *progress.Store, logger *slog.Logger) *Session {
	return &Session{layout: layout, progress: progressStore, logger: logger}
}

// Attach sets the player the session drives.
func (s *Session) Attach(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = p
}

// Current reports the open book and chapter.
func (s *Session) Current() (title string, chapter int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title, s.chapter, s.open
}

// Open loads chapter of title and seeks to the saved offset when the saved
// record points at the same chapter. Playback stays paused.
func (s *Session) Open(ctx context.Context, title string, chapter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openChapter(ctx, title, chapter)
}

// Resume opens the chapter recorded in the progress record, or the first chapter.
func (s *Session) Resume(ctx context.Context, title string) error {
	record := s.progress.LoadOrDefault(title)
	chapter := 0
	if record.CurrentChapter != nil {
		chapter = *record.CurrentChapter
	}
	return s.Open(ctx, title, chapter)
}

// Checkpoint saves the current chapter and position.
func (s *Session) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint(ctx)
}

// Advance is the player's finished hook: it saves progress and, when the next
// chapter is cached, opens and plays it.
func (s *Session) Advance(path string, position time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open || s.player == nil || s.player.State().LoadedPath != path {
		return
	}
	ctx := context.Background()

	next := s.chapter + 1
	nextPath, ok, err := chapters.Resolve(s.layout.BookDir(s.title), next)
	if err != nil || !ok {
		pos := position.Seconds()
		if err := s.progress.Save(s.title, domain.Ptr(s.chapter), s.bookURL, &pos); err != nil {
			s.logger.Warn("failed to save progress", "session", s.id, "error", err)
		}
		s.logger.Info("book finished", "session", s.id, "title", s.title)
		return
	}

	if err := s.openChapter(ctx, s.title, next); err != nil {
		s.logger.Warn("failed to advance chapter", "session", s.id, "path", nextPath, "error", err)
		return
	}
	if err := s.player.Play(); err != nil {
		s.logger.Warn("failed to resume playback", "session", s.id, "error", err)
	}
}

func (s *Session) openChapter(ctx context.Context, title string, chapter int) error {
	if s.player == nil {
		return domainerrors.InvalidStatef("no player attached")
	}

	path, ok, err := chapters.Resolve(s.layout.BookDir(title), chapter)
	if err != nil {
		return err
	}
	if !ok {
		return domainerrors.NotFoundf("chapter %d of %q is not cached", chapter, title)
	}

	if err := s.player.Start(ctx, path); err != nil {
		return err
	}

	record := s.progress.LoadOrDefault(title)
	if record.CurrentChapter != nil && *record.CurrentChapter == chapter &&
		record.CurrentChapterTime != nil && *record.CurrentChapterTime > 0 {
		if err := s.player.SeekRelative(*record.CurrentChapterTime); err != nil {
			return err
		}
	}
	if err := s.player.Sync(ctx); err != nil {
		return err
	}

	if !s.open || s.title != title {
		s.id = id.MustGenerate(id.PrefixSession)
	}
	s.title = title
	s.bookURL = record.BookURL
	s.chapter = chapter
	s.open = true

	s.logger.Info("chapter opened",
		"session", s.id,
		"title", title,
		"chapter", chapter,
		"resume_at", record.CurrentChapterTime,
	)
	return s.checkpoint(ctx)
}

func (s *Session) checkpoint(ctx context.Context) error {
	if !s.open {
		return domainerrors.InvalidStatef("no chapter open")
	}
	if err := s.player.Sync(ctx); err != nil {
		return err
	}
	pos := s.player.State().Position
	return s.progress.Save(s.title, domain.Ptr(s.chapter), s.bookURL, &pos)
}
