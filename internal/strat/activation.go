package strat

import (
	"context"
	"sync"
	"time"
)

// ActivationRegistry tracks which symbols already activated a strategy
// today, enforcing the one-activation-per-symbol-per-day guard.
type ActivationRegistry interface {
	HasActivatedToday(ctx context.Context, symbol string) (bool, error)
	MarkActivated(ctx context.Context, symbol string, stratID int64) error
}

type activationKey struct {
	day    string
	symbol string
}

// MemoryActivations is the in-process day-scoped registry. Entries from
// previous days expire lazily on read.
type MemoryActivations struct {
	mu      sync.Mutex
	entries map[activationKey]int64
	now     func() time.Time
}

// NewMemoryActivations creates an empty registry.
func NewMemoryActivations() *MemoryActivations {
	return &MemoryActivations{
		entries: make(map[activationKey]int64),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryActivations) day() string {
	return m.now().Format("2006-01-02")
}

// HasActivatedToday reports whether the symbol already activated a strategy
// on the current calendar day.
func (m *MemoryActivations) HasActivatedToday(_ context.Context, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[activationKey{day: m.day(), symbol: symbol}]
	return ok, nil
}

// MarkActivated records the symbol's activation for the current day.
func (m *MemoryActivations) MarkActivated(_ context.Context, symbol string, stratID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := m.day()
	m.entries[activationKey{day: day, symbol: symbol}] = stratID
	for key := range m.entries {
		if key.day != day {
			delete(m.entries, key)
		}
	}
	return nil
}
