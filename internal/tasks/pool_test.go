package tasks

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiody/audiody/internal/domain"
	"github.com/audiody/audiody/internal/download"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/store"
)

type ensureFunc func(ctx context.Context, req download.Request) (string, error)

func (f ensureFunc) EnsureChapter(ctx context.Context, req download.Request) (string, error) {
	return f(ctx, req)
}

func newJournal(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newPool(t *testing.T, ensurer Ensurer, journal Journal, opts Options) *Pool {
	t.Helper()
	p := New(ensurer, journal, opts, slog.New(slog.DiscardHandler))
	t.Cleanup(p.Shutdown)
	return p
}

func request(chapter int) download.Request {
	return download.Request{Title: "Walden", Chapter: chapter, SourceURL: "https://example.com/walden.mp3"}
}

func await(t *testing.T, ch <-chan domain.DownloadTask) domain.DownloadTask {
	t.Helper()
	select {
	case task := <-ch:
		return task
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for task callback")
		return domain.DownloadTask{}
	}
}

func TestPool_SubmitCompletes(t *testing.T) {
	journal := newJournal(t)
	p := newPool(t, ensureFunc(func(_ context.Context, req download.Request) (string, error) {
		return "/books/Walden/chapter_1.mp3", nil
	}), journal, Options{Workers: 2})
	require.NoError(t, p.Start())

	done := make(chan domain.DownloadTask, 1)
	taskID, err := p.Submit(t.Context(), request(0), func(task domain.DownloadTask) { done <- task })
	require.NoError(t, err)

	task := await(t, done)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, "/books/Walden/chapter_1.mp3", task.Path)

	stored, err := p.Get(t.Context(), taskID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)
}

func TestPool_FailureCarriesCode(t *testing.T) {
	p := newPool(t, ensureFunc(func(context.Context, download.Request) (string, error) {
		return "", domainerrors.Networkf("chapter download failed: status 503")
	}), newJournal(t), Options{Workers: 1})
	require.NoError(t, p.Start())

	done := make(chan domain.DownloadTask, 1)
	_, err := p.Submit(t.Context(), request(0), func(task domain.DownloadTask) { done <- task })
	require.NoError(t, err)

	task := await(t, done)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Equal(t, "NETWORK", task.ErrorCode)
	assert.Contains(t, task.Error, "503")
}

func TestPool_TimeoutFailsTask(t *testing.T) {
	p := newPool(t, ensureFunc(func(ctx context.Context, _ download.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), newJournal(t), Options{Workers: 1, Timeout: 50 * time.Millisecond})
	require.NoError(t, p.Start())

	done := make(chan domain.DownloadTask, 1)
	_, err := p.Submit(t.Context(), request(0), func(task domain.DownloadTask) { done <- task })
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusFailed, await(t, done).Status)
}

func TestPool_CancelRunning(t *testing.T) {
	started := make(chan struct{})
	p := newPool(t, ensureFunc(func(ctx context.Context, _ download.Request) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}), newJournal(t), Options{Workers: 1})
	require.NoError(t, p.Start())

	done := make(chan domain.DownloadTask, 1)
	taskID, err := p.Submit(t.Context(), request(0), func(task domain.DownloadTask) { done <- task })
	require.NoError(t, err)

	<-started
	require.NoError(t, p.Cancel(t.Context(), taskID))
	assert.Equal(t, domain.TaskStatusCanceled, await(t, done).Status)

	err = p.Cancel(t.Context(), taskID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidState))
}

func TestPool_FIFOWithSingleWorker(t *testing.T) {
	var mu sync.Mutex
	var order []int
	p := newPool(t, ensureFunc(func(_ context.Context, req download.Request) (string, error) {
		mu.Lock()
		order = append(order, req.Chapter)
		mu.Unlock()
		return "ok", nil
	}), newJournal(t), Options{Workers: 1})

	done := make(chan domain.DownloadTask, 3)
	for i := range 3 {
		_, err := p.Submit(t.Context(), request(i), func(task domain.DownloadTask) { done <- task })
		require.NoError(t, err)
	}
	require.NoError(t, p.Start())

	for range 3 {
		await(t, done)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestPool_RequeuesInterruptedTasks(t *testing.T) {
	journal := newJournal(t)
	stale := &domain.DownloadTask{
		ID:        "task-stale",
		BookTitle: "Walden",
		Chapter:   3,
		SourceURL: "https://example.com/walden_04.mp3",
		Status:    domain.TaskStatusRunning,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, journal.PutTask(t.Context(), stale))

	ran := make(chan download.Request, 1)
	p := newPool(t, ensureFunc(func(_ context.Context, req download.Request) (string, error) {
		ran <- req
		return "ok", nil
	}), journal, Options{Workers: 1})
	require.NoError(t, p.Start())

	select {
	case req := <-ran:
		assert.Equal(t, 3, req.Chapter)
	case <-time.After(5 * time.Second):
		t.Fatal("interrupted task was not requeued")
	}

	assert.Eventually(t, func() bool {
		task, err := journal.GetTask(context.Background(), "task-stale")
		return err == nil && task.Status == domain.TaskStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := newPool(t, ensureFunc(func(context.Context, download.Request) (string, error) {
		return "", nil
	}), newJournal(t), Options{Workers: 1})
	require.NoError(t, p.Start())
	p.Shutdown()

	_, err := p.Submit(t.Context(), request(0), nil)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrChannelClosed))
	assert.Error(t, p.Start())
}

// gatedJournal holds the write that marks a task running until release is closed.
type gatedJournal struct {
	*store.Store
	picked  chan struct{}
	release chan struct{}
}

func (j *gatedJournal) PutTask(ctx context.Context, task *domain.DownloadTask) error {
	if task.Status == domain.TaskStatusRunning {
		close(j.picked)
		<-j.release
	}
	return j.Store.PutTask(ctx, task)
}

func TestPool_CancelPickedBeforeStart(t *testing.T) {
	journal := &gatedJournal{Store: newJournal(t), picked: make(chan struct{}), release: make(chan struct{})}
	var ran bool
	p := newPool(t, ensureFunc(func(ctx context.Context, _ download.Request) (string, error) {
		ran = ctx.Err() == nil
		return "", ctx.Err()
	}), journal, Options{Workers: 1})
	require.NoError(t, p.Start())

	done := make(chan domain.DownloadTask, 1)
	taskID, err := p.Submit(t.Context(), request(0), func(task domain.DownloadTask) { done <- task })
	require.NoError(t, err)

	<-journal.picked
	assert.Equal(t, 0, p.Pending())
	require.NoError(t, p.Cancel(t.Context(), taskID))
	close(journal.release)

	assert.Equal(t, domain.TaskStatusCanceled, await(t, done).Status)
	assert.False(t, ran)
}
