// Package locking provides ProjectLocker backends that serialize suggestion
// processing per project.
package locking

import (
	"context"
	"sync"
)

// MemoryLocker serializes callers within one process. Each project gets a
// one-slot channel; holding the slot is holding the lock.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

// NewMemoryLocker creates a new in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

// Lock blocks until the project is free or ctx is done
func (l *MemoryLocker) Lock(ctx context.Context, projectID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[projectID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[projectID] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(projectID, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(projectID, s, true) })
	}, nil
}

func (l *MemoryLocker) release(projectID string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, projectID)
	}
}

// NoopLocker never blocks. Concurrent runs then rely on the store's
// uniqueness guards alone.
type NoopLocker struct{}

// Lock implements ports.ProjectLocker
func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
