// Package lockmgr implements the per-resource advisory locking described in
// §5: one exclusive lock per canonical document path, and one per log file,
// each acquired with a configurable timeout that fails with LOCK_TIMEOUT
// rather than blocking forever.
package lockmgr

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/scribehq/dle/internal/dlerrors"
)

// Manager hands out exclusive, named locks keyed by canonical absolute
// path. Locks are created lazily and never removed, which is acceptable
// for the engine's lifetime since the resource set (registered documents
// and log files) is small and bounded.
type Manager struct {
	mu      sync.Mutex
	locks   map[string]*semaphore.Weighted
	timeout time.Duration
}

// New builds a Manager whose Acquire calls time out after timeout.
func New(timeout time.Duration) *Manager {
	return &Manager{locks: make(map[string]*semaphore.Weighted), timeout: timeout}
}

func (m *Manager) semaphoreFor(key string) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	sem, ok := m.locks[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		m.locks[key] = sem
	}
	return sem
}

// Unlock releases the named resource's lock.
type Unlock func()

// Acquire blocks until the named resource's lock is free, honoring the
// manager's configured timeout. It returns an Unlock func to release the
// lock, or a LOCK_TIMEOUT error if the timeout elapses first.
func (m *Manager) Acquire(ctx context.Context, key string) (Unlock, error) {
	sem := m.semaphoreFor(key)

	timeoutCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := sem.Acquire(timeoutCtx, 1); err != nil {
		return nil, dlerrors.Newf(dlerrors.LockTimeout, "timed out acquiring lock for %q", key).
			WithDiagnostics(map[string]any{"key": key, "timeout": m.timeout.String()})
	}

	var once sync.Once
	return func() {
		once.Do(func() { sem.Release(1) })
	}, nil
}

// WithLock acquires the named resource's lock, runs fn, and releases the
// lock unconditionally afterward.
func (m *Manager) WithLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := m.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
