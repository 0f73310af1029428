// Package store persists the download task journal in Badger.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/audiody/audiody/internal/errors"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path. An empty path keeps
// everything in memory, which tests and ephemeral runs use.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = path != ""
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeFilesystem, "open badger db %q", path)
	}

	logger.Info("task journal opened", "path", path, "in_memory", path == "")
	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing task journal")
	return s.db.Close()
}

// get retrieves a JSON value by key.
func (s *Store) get(ctx context.Context, key []byte, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domainerrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, dest); err != nil {
				return domainerrors.Wrapf(err, domainerrors.CodeParse, "decode %s", key)
			}
			return nil
		})
	})
}

// scan decodes every value under prefix, in key order.
func scan[T any](ctx context.Context, s *Store, prefix []byte) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*T
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, &v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
