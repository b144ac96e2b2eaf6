package recon

import (
	"sync"
	"time"

	"stratmgr/internal/schema"
)

// participationTracker keeps a rolling record of own-order quantity per
// strategy leg, so the participation headroom compares a like-for-like
// window against the market volume feed. Aged prints are dropped on read.
type participationTracker struct {
	mu      sync.Mutex
	entries map[participationKey][]participationPrint
	now     func() time.Time
}

type participationKey struct {
	stratID int64
	side    schema.Side
}

type participationPrint struct {
	qty int64
	at  time.Time
}

func newParticipationTracker() *participationTracker {
	return &participationTracker{
		entries: make(map[participationKey][]participationPrint),
		now:     time.Now,
	}
}

// add records own-order quantity placed now.
func (t *participationTracker) add(stratID int64, side schema.Side, qty int64) {
	if qty <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := participationKey{stratID: stratID, side: side}
	t.entries[key] = append(t.entries[key], participationPrint{qty: qty, at: t.now()})
}

// sum returns the own-order quantity placed within the period, compacting
// prints that fell out of the window.
func (t *participationTracker) sum(stratID int64, side schema.Side, period time.Duration) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := participationKey{stratID: stratID, side: side}
	prints, ok := t.entries[key]
	if !ok {
		return 0
	}

	cutoff := t.now().Add(-period)
	kept := prints[:0]
	var total int64
	for _, p := range prints {
		if p.at.Before(cutoff) {
			continue
		}
		kept = append(kept, p)
		total += p.qty
	}
	if len(kept) == 0 {
		delete(t.entries, key)
		return 0
	}
	t.entries[key] = kept
	return total
}
