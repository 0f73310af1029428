package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/audiody/audiody/internal/domain"
	domainerrors "github.com/audiody/audiody/internal/errors"
)

// PutTask creates or replaces a task and keeps the status index in step.
func (s *Store) PutTask(ctx context.Context, task *domain.DownloadTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(task)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeEncode, "marshal task")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := taskKey(task.ID)

		old, err := readTask(txn, key)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if old != nil && old.Status != task.Status {
			if err := txn.Delete(taskStatusKey(old.Status, old.ID)); err != nil {
				return fmt.Errorf("delete status index: %w", err)
			}
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set task: %w", err)
		}
		return txn.Set(taskStatusKey(task.Status, task.ID), []byte(task.ID))
	})
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.DownloadTask, error) {
	var task domain.DownloadTask
	if err := s.get(ctx, taskKey(id), &task); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFoundf("task %s not found", id)
		}
		return nil, err
	}
	return &task, nil
}

// ListTasks returns all tasks, oldest first.
func (s *Store) ListTasks(ctx context.Context) ([]*domain.DownloadTask, error) {
	tasks, err := scan[domain.DownloadTask](ctx, s, []byte(taskPrefix))
	if err != nil {
		return nil, err
	}
	sortByCreated(tasks)
	return tasks, nil
}

// ListTasksByStatus returns tasks in the given status, oldest first.
func (s *Store) ListTasksByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.DownloadTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := taskStatusPrefix(status)
	var tasks []*domain.DownloadTask

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			task, err := readTask(txn, taskKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortByCreated(tasks)
	return tasks, nil
}

// DeleteTask removes a task. Deleting a missing task is not an error.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := taskKey(id)
		task, err := readTask(txn, key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(taskStatusKey(task.Status, id)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// PruneTasks deletes terminal tasks that finished before cutoff.
func (s *Store) PruneTasks(ctx context.Context, cutoff time.Time) (int, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, t := range tasks {
		if !t.Status.Terminal() || t.CompletedAt == nil || !t.CompletedAt.Before(cutoff) {
			continue
		}
		if err := s.DeleteTask(ctx, t.ID); err != nil {
			return pruned, err
		}
		pruned++
	}
	if pruned > 0 {
		s.logger.Debug("pruned finished tasks", "count", pruned)
	}
	return pruned, nil
}

func readTask(txn *badger.Txn, key []byte) (*domain.DownloadTask, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var task domain.DownloadTask
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &task)
	}); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

func sortByCreated(tasks []*domain.DownloadTask) {
	slices.SortStableFunc(tasks, func(a, b *domain.DownloadTask) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
