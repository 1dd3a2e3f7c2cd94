package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// sessionLocks serializes turns per session id. Entries are reference
// counted and dropped once nobody holds or waits on them.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*sessionLock
}

type sessionLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[string]*sessionLock)}
}

// Acquire blocks until the session is free or ctx is done.
func (l *sessionLocks) Acquire(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[sessionID]
	if !ok {
		e = &sessionLock{sem: semaphore.NewWeighted(1)}
		l.entries[sessionID] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.unref(sessionID, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(sessionID, e)
		})
	}, nil
}

func (l *sessionLocks) unref(sessionID string, e *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, sessionID)
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
