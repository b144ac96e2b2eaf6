// Package md caches top-of-book state per symbol and tracks the rolling
// traded-volume window used for participation checks.
package md

import (
	"sync"
	"time"

	"stratmgr/pkg/exception"
)

// TopOfBook is the cached best quote and last trade for one symbol.
type TopOfBook struct {
	Symbol         string
	BidPx          float64
	BidQty         int64
	AskPx          float64
	AskQty         int64
	LastTradePx    float64
	LastTradeQty   int64
	LastUpdateTime time.Time
}

// Provider resolves the current top of book for a symbol.
type Provider interface {
	TopOfBook(symbol string) (TopOfBook, error)
}

// VolumeProvider sums traded quantity over a trailing window.
type VolumeProvider interface {
	TradedQtySince(symbol string, period time.Duration) int64
}

// Cache holds top-of-book state fed by market data updates.
type Cache struct {
	mu      sync.RWMutex
	books   map[string]TopOfBook
	windows map[string]*volumeWindow
}

// NewCache creates an empty top-of-book cache.
func NewCache() *Cache {
	return &Cache{
		books:   make(map[string]TopOfBook),
		windows: make(map[string]*volumeWindow),
	}
}

// TopOfBook returns the cached book for a symbol.
func (c *Cache) TopOfBook(symbol string) (TopOfBook, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tob, ok := c.books[symbol]
	if !ok {
		return TopOfBook{}, exception.ErrNoTopOfBook
	}
	return tob, nil
}

// ApplyQuote updates the best bid/ask for a symbol.
func (c *Cache) ApplyQuote(symbol string, bidPx float64, bidQty int64, askPx float64, askQty int64) {
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	tob := c.books[symbol]
	tob.Symbol = symbol
	tob.BidPx = bidPx
	tob.BidQty = bidQty
	tob.AskPx = askPx
	tob.AskQty = askQty
	tob.LastUpdateTime = now
	c.books[symbol] = tob
}

// ApplyTrade records a trade print and feeds the rolling volume window.
func (c *Cache) ApplyTrade(symbol string, px float64, qty int64, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tob := c.books[symbol]
	tob.Symbol = symbol
	tob.LastTradePx = px
	tob.LastTradeQty = qty
	tob.LastUpdateTime = ts
	c.books[symbol] = tob

	w, ok := c.windows[symbol]
	if !ok {
		w = newVolumeWindow()
		c.windows[symbol] = w
	}
	w.add(px, qty, ts)
}

// TradedQtySince sums traded quantity for a symbol over the trailing period.
func (c *Cache) TradedQtySince(symbol string, period time.Duration) int64 {
	c.mu.RLock()
	w, ok := c.windows[symbol]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return w.sumSince(time.Now().UTC().Add(-period))
}

type tradePrint struct {
	px  float64
	qty int64
	ts  time.Time
}

// volumeWindow keeps recent trade prints; stale prints are dropped lazily.
type volumeWindow struct {
	mu     sync.Mutex
	prints []tradePrint
	maxAge time.Duration
}

func newVolumeWindow() *volumeWindow {
	return &volumeWindow{maxAge: time.Hour}
}

func (w *volumeWindow) add(px float64, qty int64, ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prints = append(w.prints, tradePrint{px: px, qty: qty, ts: ts})
	w.compact(ts)
}

func (w *volumeWindow) sumSince(cutoff time.Time) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var sum int64
	for _, p := range w.prints {
		if p.ts.Before(cutoff) {
			continue
		}
		sum += p.qty
	}
	return sum
}

func (w *volumeWindow) compact(now time.Time) {
	cutoff := now.Add(-w.maxAge)
	idx := 0
	for idx < len(w.prints) && w.prints[idx].ts.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		w.prints = append(w.prints[:0], w.prints[idx:]...)
	}
}
