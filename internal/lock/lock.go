// Package lock provides the keyed mutual-exclusion guard serializing
// reconciliation cascades per strategy, plus the portfolio and activation
// critical sections.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"
)

// Guard is a mutual-exclusion primitive scoped per logical critical section.
// The engine acquires a key once per event, runs the full cascade, and
// releases; helpers below an acquired section never re-acquire the same key.
type Guard interface {
	// Lock blocks until the key is acquired or ctx is done.
	Lock(ctx context.Context, key string, ttl time.Duration) error

	// TryLock attempts to acquire the key without blocking.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases the key.
	Unlock(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}

// Memory is the single-process guard backed by per-key semaphores.
type Memory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemory creates an in-process guard.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]chan struct{})}
}

func (m *Memory) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

// Lock blocks until the key is acquired or ctx is done.
func (m *Memory) Lock(ctx context.Context, key string, _ time.Duration) error {
	select {
	case m.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock attempts to acquire the key without blocking.
func (m *Memory) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	select {
	case m.slot(key) <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

// Unlock releases the key.
func (m *Memory) Unlock(_ context.Context, key string) error {
	select {
	case <-m.slot(key):
		return nil
	default:
		return errors.Errorf("lock not held: %s", key)
	}
}

// Close is a no-op for the in-process guard.
func (m *Memory) Close() error {
	return nil
}
