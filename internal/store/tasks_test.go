package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTask(id string, created time.Time) *domain.DownloadTask {
	return &domain.DownloadTask{
		ID:        id,
		BookTitle: "The Republic",
		Chapter:   0,
		SourceURL: "https://example.com/a.mp3",
		Status:    domain.TaskStatusPending,
		CreatedAt: created,
	}
}

func TestTasks_PutGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	task := newTask("task-1", time.Now())
	require.NoError(t, s.PutTask(ctx, task))

	got, err := s.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "The Republic", got.BookTitle)
	assert.Equal(t, domain.TaskStatusPending, got.Status)

	_, err = s.GetTask(ctx, "missing")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestTasks_StatusIndexFollowsUpdates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	a := newTask("a", now)
	b := newTask("b", now.Add(time.Second))
	require.NoError(t, s.PutTask(ctx, a))
	require.NoError(t, s.PutTask(ctx, b))

	a.MarkRunning()
	require.NoError(t, s.PutTask(ctx, a))

	pending, err := s.ListTasksByStatus(ctx, domain.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)

	running, err := s.ListTasksByStatus(ctx, domain.TaskStatusRunning)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "a", running[0].ID)

	all, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
}

func TestTasks_DeleteAndPrune(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	old := newTask("old", time.Now().Add(-2*time.Hour))
	old.MarkCompleted("/books/x/chapter_1.mp3")
	past := time.Now().Add(-time.Hour)
	old.CompletedAt = &past

	fresh := newTask("fresh", time.Now())
	fresh.MarkCompleted("/books/x/chapter_2.mp3")

	running := newTask("running", time.Now())
	running.MarkRunning()

	for _, task := range []*domain.DownloadTask{old, fresh, running} {
		require.NoError(t, s.PutTask(ctx, task))
	}

	n, err := s.PruneTasks(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetTask(ctx, "old")
	assert.Error(t, err)

	require.NoError(t, s.DeleteTask(ctx, "running"))
	require.NoError(t, s.DeleteTask(ctx, "running"))

	remaining, err := s.ListTasksByStatus(ctx, domain.TaskStatusRunning)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestTasks_CanceledContext(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.PutTask(ctx, newTask("x", time.Now())), context.Canceled)
	_, err := s.ListTasks(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
