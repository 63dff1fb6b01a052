package userlock

import (
	"context"
	"sync"
)

type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemory constructs a process-local locker for tests and single-node runs.
func NewMemory() Locker {
	return &memoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memoryLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		var once sync.Once
		return func() { once.Do(m.Unlock) }, nil
	case <-ctx.Done():
		// The goroutine will eventually take the mutex; release it then.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ErrNotAcquired
	}
}
