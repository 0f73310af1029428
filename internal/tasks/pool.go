// Package tasks runs chapter downloads on a fixed set of background workers
// and journals every task so its outcome can be queried later.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/audiody/audiody/internal/domain"
	"github.com/audiody/audiody/internal/download"
	domainerrors "github.com/audiody/audiody/internal/errors"
	"github.com/audiody/audiody/internal/id"
)

const pollInterval = 5 * time.Second

// Ensurer makes one chapter available locally.
type Ensurer interface {
	EnsureChapter(ctx context.Context, req download.Request) (string, error)
}

// Journal persists task records.
type Journal interface {
	PutTask(ctx context.Context, task *domain.DownloadTask) error
	GetTask(ctx context.Context, id string) (*domain.DownloadTask, error)
	ListTasks(ctx context.Context) ([]*domain.DownloadTask, error)
	ListTasksByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.DownloadTask, error)
}

// Callback receives the final state of a task. It runs on a worker goroutine.
type Callback func(task domain.DownloadTask)

// Options configures a Pool.
type Options struct {
	Workers int
	Timeout time.Duration
}

type entry struct {
	task *domain.DownloadTask
	req  download.Request
	cb   Callback

	// Set by dequeue.
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool is a FIFO download queue served by a fixed number of workers.
type Pool struct {
	ensurer Ensurer
	journal Journal
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queue   []*entry
	running map[string]context.CancelFunc
	started bool
	closed  bool

	notify chan struct{}
}

// New creates a pool. Call Start to launch the workers.
func New(ensurer Ensurer, journal Journal, opts Options, logger *slog.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ensurer: ensurer,
		journal: journal,
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]context.CancelFunc),
		notify:  make(chan struct{}, 1),
	}
}

// Start requeues tasks interrupted by a previous shutdown and launches the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return domainerrors.InvalidStatef("task pool already started")
	}
	p.started = true
	p.mu.Unlock()

	if err := p.recoverInterrupted(); err != nil {
		return err
	}

	for i := range p.opts.Workers {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("task pool started", "workers", p.opts.Workers, "timeout", p.opts.Timeout)
	return nil
}

// Shutdown cancels in-flight tasks and waits for the workers to exit.
// Queued tasks stay pending in the journal and are resumed by the next Start.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.logger.Info("task pool stopped")
}

// Submit queues a chapter download and returns its task ID immediately.
func (p *Pool) Submit(ctx context.Context, req download.Request, cb Callback) (string, error) {
	taskID, err := id.Generate(id.PrefixTask)
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "generate task id")
	}

	bookKey := req.BookURL
	if bookKey == "" {
		bookKey = req.SourceURL
	}
	task := &domain.DownloadTask{
		ID:        taskID,
		BookTitle: req.Title,
		BookID:    domain.NewBookID(bookKey),
		Chapter:   req.Chapter,
		SourceURL: req.SourceURL,
		BookURL:   req.BookURL,
		Status:    domain.TaskStatusPending,
		CreatedAt: time.Now(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", domainerrors.ErrChannelClosed
	}

	if err := p.journal.PutTask(ctx, task); err != nil {
		return "", err
	}
	p.queue = append(p.queue, &entry{task: task, req: req, cb: cb})
	p.signal()

	p.logger.Debug("task queued", "task_id", taskID, "title", req.Title, "chapter", req.Chapter)
	return taskID, nil
}

// Get returns the journaled state of a task.
func (p *Pool) Get(ctx context.Context, taskID string) (*domain.DownloadTask, error) {
	return p.journal.GetTask(ctx, taskID)
}

// List returns all journaled tasks, oldest first.
func (p *Pool) List(ctx context.Context) ([]*domain.DownloadTask, error) {
	return p.journal.ListTasks(ctx)
}

// Cancel stops a queued or running task. Finished tasks are left untouched.
func (p *Pool) Cancel(ctx context.Context, taskID string) error {
	p.mu.Lock()
	if stop, ok := p.running[taskID]; ok {
		p.mu.Unlock()
		stop()
		return nil
	}

	idx := slices.IndexFunc(p.queue, func(e *entry) bool { return e.task.ID == taskID })
	if idx < 0 {
		p.mu.Unlock()
		task, err := p.journal.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		return domainerrors.InvalidStatef("task %s is already %s", taskID, task.Status)
	}
	e := p.queue[idx]
	p.queue = slices.Delete(p.queue, idx, idx+1)
	p.mu.Unlock()

	e.task.MarkFailed(domain.TaskStatusCanceled, string(domainerrors.CodeInternal), "canceled before start")
	p.finish(e)
	return nil
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *Pool) dequeue() *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.queue) == 0 {
		return nil
	}
	e := p.queue[0]
	p.queue = p.queue[1:]
	// Registered before the lock drops so Cancel always finds the task.
	e.ctx, e.cancel = p.taskContext()
	p.running[e.task.ID] = e.cancel
	if len(p.queue) > 0 {
		p.signal()
	}
	return e
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()

	p.logger.Debug("download worker started", "worker", n)
	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("download worker stopping", "worker", n)
			return
		case <-p.notify:
		case <-time.After(pollInterval):
		}

		for {
			e := p.dequeue()
			if e == nil {
				break
			}
			p.run(e)
		}
	}
}

func (p *Pool) run(e *entry) {
	ctx := e.ctx
	defer e.cancel()

	e.task.MarkRunning()
	if err := p.journal.PutTask(context.WithoutCancel(ctx), e.task); err != nil {
		p.logger.Warn("failed to journal task start", "task_id", e.task.ID, "error", err)
	}

	start := time.Now()
	path, err := p.ensurer.EnsureChapter(ctx, e.req)

	p.mu.Lock()
	delete(p.running, e.task.ID)
	p.mu.Unlock()

	switch {
	case err == nil:
		e.task.MarkCompleted(path)
		p.logger.Info("task completed",
			"task_id", e.task.ID,
			"title", e.req.Title,
			"chapter", e.req.Chapter,
			"duration", time.Since(start),
		)
	case errors.Is(err, context.Canceled) && p.ctx.Err() == nil:
		e.task.MarkFailed(domain.TaskStatusCanceled, string(domainerrors.CodeOf(err)), err.Error())
		p.logger.Info("task canceled", "task_id", e.task.ID)
	case errors.Is(err, context.Canceled):
		// Interrupted by Shutdown: leave it resumable.
		e.task.Status = domain.TaskStatusPending
		e.task.StartedAt = nil
	default:
		e.task.MarkFailed(domain.TaskStatusFailed, string(domainerrors.CodeOf(err)), err.Error())
		p.logger.Warn("task failed",
			"task_id", e.task.ID,
			"title", e.req.Title,
			"chapter", e.req.Chapter,
			"error", err,
		)
	}

	p.finish(e)
}

func (p *Pool) finish(e *entry) {
	if err := p.journal.PutTask(context.Background(), e.task); err != nil {
		p.logger.Warn("failed to journal task", "task_id", e.task.ID, "error", err)
	}
	if e.cb != nil && e.task.Status.Terminal() {
		e.cb(*e.task)
	}
}

func (p *Pool) taskContext() (context.Context, context.CancelFunc) {
	if p.opts.Timeout > 0 {
		return context.WithTimeout(p.ctx, p.opts.Timeout)
	}
	return context.WithCancel(p.ctx)
}

// recoverInterrupted requeues tasks left pending or running by a previous process.
func (p *Pool) recoverInterrupted() error {
	var stale []*domain.DownloadTask
	for _, status := range []domain.TaskStatus{domain.TaskStatusRunning, domain.TaskStatusPending} {
		tasks, err := p.journal.ListTasksByStatus(p.ctx, status)
		if err != nil {
			return err
		}
		stale = append(stale, tasks...)
	}
	if len(stale) == 0 {
		return nil
	}

	slices.SortStableFunc(stale, func(a, b *domain.DownloadTask) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	requeued := 0
	for _, task := range stale {
		if slices.ContainsFunc(p.queue, func(e *entry) bool { return e.task.ID == task.ID }) {
			continue
		}
		task.Status = domain.TaskStatusPending
		task.StartedAt = nil
		if err := p.journal.PutTask(p.ctx, task); err != nil {
			return err
		}
		p.queue = append(p.queue, &entry{
			task: task,
			req: download.Request{
				Title:     task.BookTitle,
				Chapter:   task.Chapter,
				SourceURL: task.SourceURL,
				BookURL:   task.BookURL,
			},
		})
		requeued++
	}
	p.signal()

	if requeued > 0 {
		p.logger.Info("requeued interrupted tasks", "count", requeued)
	}
	return nil
}
