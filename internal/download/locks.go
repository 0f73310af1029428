package download

import (
	"context"
	"sync"
)

// bookLocks serializes work on the same book directory while letting
// different books proceed in parallel.
type bookLocks struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newBookLocks() *bookLocks {
	return &bookLocks{slots: make(map[string]*slot)}
}

// lock blocks until key is free or ctx is done. The returned func releases it.
func (l *bookLocks) lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			l.release(key, s)
		}, nil
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}
}

func (l *bookLocks) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
