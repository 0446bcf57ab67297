package lock

import (
	"context"
	"sync"
)

// LocalLocker serializes holders of the same key inside one process.  Each
// key owns a one-slot channel; entries are dropped once nobody holds or
// waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done.  A ctx that ends the wait
// is reported as ErrNotAcquired wrapped with ctx.Err().
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
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
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, notAcquired(ctx)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

func (l *LocalLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}
