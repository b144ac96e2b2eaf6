// Package recovery rebuilds the reconciliation state after a restart by
// replaying the journal through a fresh engine. Delivery is at least once:
// events that fail with an expected precondition error (duplicate records,
// invalid transitions already applied) are logged and skipped rather than
// failing the whole recovery.
package recovery

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stratmgr/internal/journal"
	"stratmgr/internal/recon"
	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

// Result summarizes one recovery run.
type Result struct {
	OrderEvents int
	FillEvents  int
	Skipped     int
}

// Run replays every surviving journal frame through the engine. The engine
// must already be ready: recovery drives it exactly like the live event
// path does. A store that already holds reconciled state refuses replay
// with exception.ErrStoreNotEmpty — partial fills are not idempotent, and
// re-applying them on top of surviving state would double-count quantities
// and notionals.
func Run(ctx context.Context, cfg journal.ReplayConfig, engine *recon.Engine) (Result, error) {
	reconciled, err := engine.HasReconciledState(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "check store state")
	}
	if reconciled {
		return Result{}, exception.ErrStoreNotEmpty
	}

	replayer, err := journal.NewReplayer(cfg)
	if err != nil {
		return Result{}, err
	}

	h := &replayHandler{engine: engine}
	if err := replayer.Run(ctx, h); err != nil {
		return h.result, errors.Wrap(err, "journal replay")
	}
	logs.Infof("recovery complete: %d order events, %d fill events, %d skipped",
		h.result.OrderEvents, h.result.FillEvents, h.result.Skipped)
	return h.result, nil
}

type replayHandler struct {
	engine *recon.Engine
	result Result
}

func (h *replayHandler) OnOrderJournal(ctx context.Context, oj schema.OrderJournal) error {
	err := h.engine.HandleOrderJournal(ctx, oj)
	if err == nil {
		h.result.OrderEvents++
		return nil
	}
	if recoverable(err) {
		h.result.Skipped++
		logs.Infof("recovery: skipping order event %s for %s: %v",
			oj.OrderEventType, oj.Order.OrderID, err)
		return nil
	}
	return errors.Wrap(err, "replay order event").With("order_id", oj.Order.OrderID)
}

func (h *replayHandler) OnFillJournal(ctx context.Context, fj schema.FillJournal) error {
	err := h.engine.HandleFillJournal(ctx, fj)
	if err == nil {
		h.result.FillEvents++
		return nil
	}
	if recoverable(err) {
		h.result.Skipped++
		logs.Infof("recovery: skipping fill %s on order %s: %v", fj.FillID, fj.OrderID, err)
		return nil
	}
	return errors.Wrap(err, "replay fill event").With("order_id", fj.OrderID)
}

// recoverable reports whether a replayed event may be dropped without
// losing state. These are the errors the live path also treats as
// terminal for one event: re-delivered duplicates and events whose
// strategy context is gone.
func recoverable(err error) bool {
	for _, expected := range []error{
		exception.ErrDuplicateRecord,
		exception.ErrOrderInvalidTransition,
		exception.ErrOrderAlreadyFilled,
		exception.ErrOrderFillAfterDod,
		exception.ErrOrderAmbiguousJournal,
		exception.ErrStratNotFound,
		exception.ErrNotFound,
		exception.ErrMultipleMatches,
	} {
		if errors.Is(err, expected) {
			return true
		}
	}
	return false
}
