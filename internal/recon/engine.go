// Package recon is the order-event-to-strategy-state reconciliation engine.
// It consumes order journal and fill journal events and drives the cascade
// OrderSnapshot -> SymbolSideSnapshot -> StratBrief -> PairStrat status ->
// PortfolioStatus under a per-strategy critical section. Processing is
// at-least-once: a step failure aborts the rest of the cascade for that
// event, already-applied upstream mutations are kept and surfaced via
// alerts rather than rolled back.
package recon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stratmgr/internal/lock"
	"stratmgr/internal/md"
	"stratmgr/internal/obs"
	"stratmgr/internal/pricing"
	"stratmgr/internal/risk"
	"stratmgr/internal/store"
	"stratmgr/pkg/exception"
)

const (
	portfolioLockKey = "portfolio"
	cascadeLockTTL   = 10 * time.Second

	// CXL_REJ status reversion inspects this many recent journal entries.
	journalRevertDepth = 3
)

// Engine reconciles journal events into the snapshot and status stores.
type Engine struct {
	store     *store.Store
	books     md.Provider
	volume    md.VolumeProvider
	pricer    pricing.Adapter
	refData   pricing.ReferenceData
	guard     lock.Guard
	evaluator *risk.Evaluator
	metrics   *obs.Metrics

	participation *participationTracker

	ready atomic.Bool
}

// Option mutates engine construction.
type Option func(*Engine)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithExtraChecks registers additional risk checks composed with the
// built-in limit rules.
func WithExtraChecks(checks ...risk.Check) Option {
	return func(e *Engine) { e.evaluator = risk.NewEvaluator(checks...) }
}

// New creates a reconciliation engine. The engine starts not-ready; callers
// must invoke SetReady once reference and market data are initialized.
func New(
	s *store.Store,
	books md.Provider,
	volume md.VolumeProvider,
	pricer pricing.Adapter,
	refData pricing.ReferenceData,
	guard lock.Guard,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:         s,
		books:         books,
		volume:        volume,
		pricer:        pricer,
		refData:       refData,
		guard:         guard,
		evaluator:     risk.NewEvaluator(),
		participation: newParticipationTracker(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetReady flips the service readiness gate.
func (e *Engine) SetReady(ready bool) {
	e.ready.Store(ready)
}

// Ready reports whether the engine accepts events.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// HasReconciledState reports whether the backing store already carries
// reconciled state from a previous run. Fills are not idempotent, so
// replaying the journal on top of surviving state would double-count them;
// recovery checks this before touching any event.
func (e *Engine) HasReconciledState(ctx context.Context) (bool, error) {
	_, err := e.store.Portfolio.Get(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, exception.ErrPortfolioStatusGone) {
		return false, nil
	}
	return false, err
}

func stratLockKey(stratID int64) string {
	return fmt.Sprintf("strat:%d", stratID)
}

// withStratLock runs fn inside the per-strategy critical section that
// serializes the full cascade for events touching the same strategy.
func (e *Engine) withStratLock(ctx context.Context, stratID int64, fn func() error) error {
	key := stratLockKey(stratID)
	if err := e.guard.Lock(ctx, key, cascadeLockTTL); err != nil {
		return errors.Wrap(err, "acquire strat lock").With("strat_id", stratID)
	}
	defer func() {
		if err := e.guard.Unlock(ctx, key); err != nil {
			logs.Errorf("release strat lock %d: %+v", stratID, err)
		}
	}()
	return fn()
}

// withPortfolioLock guards the PortfolioStatus singleton read-modify-write.
func (e *Engine) withPortfolioLock(ctx context.Context, fn func() error) error {
	if err := e.guard.Lock(ctx, portfolioLockKey, cascadeLockTTL); err != nil {
		return errors.Wrap(err, "acquire portfolio lock")
	}
	defer func() {
		if err := e.guard.Unlock(ctx, portfolioLockKey); err != nil {
			logs.Errorf("release portfolio lock: %+v", err)
		}
	}()
	return fn()
}

// usdPx converts a local price to USD, returning 0 only alongside an error.
func (e *Engine) usdPx(px float64, secID string) (float64, error) {
	return e.pricer.UsdPx(px, secID)
}

// lastTradePx fetches the top-of-book last trade price for a security.
func (e *Engine) lastTradePx(secID string) (float64, error) {
	tob, err := e.books.TopOfBook(secID)
	if err != nil {
		return 0, err
	}
	if tob.LastTradePx <= 0 {
		return 0, exception.ErrNoLastTradePx
	}
	return tob.LastTradePx, nil
}

func (e *Engine) abortCascade(step string, err error) error {
	e.metrics.IncCascadeAbort(step)
	logs.Errorf("cascade aborted at %s: %+v", step, err)
	return errors.Wrap(err, step)
}
