package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

// HandleFillJournal consumes one execution event and reconciles the fill
// through the same cascade as order events. Over-fills are truncated to the
// vacant quantity; fills against FILLED or DOD orders are dropped with an
// alert and a forced pause.
func (e *Engine) HandleFillJournal(ctx context.Context, fj schema.FillJournal) error {
	start := time.Now()
	err := e.handleFillJournal(ctx, fj)
	e.metrics.ObserveEvent("FILL", err, time.Since(start))
	return err
}

func (e *Engine) handleFillJournal(ctx context.Context, fj schema.FillJournal) error {
	if !e.Ready() {
		return exception.ErrServiceUnavailable
	}

	usdFillPx, err := e.usdPx(fj.FillPx, fj.FillSymbol)
	if err != nil {
		return errors.Wrap(err, "fill usd px").With("sec", fj.FillSymbol)
	}
	fj.FillNotional = usdFillPx * float64(fj.FillQty)

	if _, err := e.store.FillJournals.Append(ctx, fj); err != nil {
		return errors.Wrap(err, "append fill journal").With("order_id", fj.OrderID)
	}

	prior, err := e.store.OrderSnapshots.GetByOrderID(ctx, fj.OrderID)
	if err != nil {
		return e.abortCascade("order_snapshot",
			errors.Wrap(err, "no order for fill").With("order_id", fj.OrderID))
	}

	ps, err := e.store.PairStrats.FindOngoingBySymbolSide(ctx, prior.OrderBrief.Security.SecID, prior.OrderBrief.Side)
	if err != nil {
		return e.abortCascade("resolve_strat",
			errors.Wrap(err, "no ongoing strat for fill").
				With("sec", prior.OrderBrief.Security.SecID).
				With("side", prior.OrderBrief.Side.String()))
	}

	return e.withStratLock(ctx, ps.ID, func() error {
		var appliedQty int64
		var appliedNotional float64
		var overFilled bool

		snap, err := e.store.OrderSnapshots.Update(ctx, fj.OrderID, func(snap *schema.OrderSnapshot) error {
			switch snap.OrderStatus {
			case schema.OrderStatusFilled:
				return exception.ErrOrderAlreadyFilled
			case schema.OrderStatusDod:
				return exception.ErrOrderFillAfterDod
			}

			appliedQty = fj.FillQty
			appliedNotional = fj.FillNotional
			updatedFilledQty := snap.FilledQty + fj.FillQty
			if updatedFilledQty > snap.OrderBrief.Qty {
				vacantQty := snap.OrderBrief.Qty - snap.FilledQty
				logs.Errorf("over-fill on order %s: fill qty %d truncated to vacant %d",
					fj.OrderID, fj.FillQty, vacantQty)
				appliedQty = vacantQty
				appliedNotional = usdFillPx * float64(vacantQty)
				updatedFilledQty = snap.OrderBrief.Qty
				overFilled = true
			}

			snap.FilledQty = updatedFilledQty
			snap.FillNotional += appliedNotional
			if updatedFilledQty > 0 {
				snap.AvgFillPx = snap.FillNotional / float64(updatedFilledQty)
			}
			snap.LastUpdateFillQty = appliedQty
			snap.LastUpdateFillPx = fj.FillPx
			if updatedFilledQty == snap.OrderBrief.Qty {
				snap.OrderStatus = schema.OrderStatusFilled
			}
			snap.LastUpdateTime = fj.FillTime
			return nil
		})
		if err != nil {
			return e.rejectFill(ctx, ps.ID, fj, err)
		}

		if err := e.cascadeFill(ctx, fj, snap, ps, appliedQty, appliedNotional, usdFillPx); err != nil {
			return err
		}
		if overFilled {
			return e.pauseWithAlert(ctx, ps.ID, schema.NewAlert(
				schema.SeverityWarning,
				"over-fill truncated",
				fmt.Sprintf("order_id: %s, fill_qty: %d, applied_qty: %d", fj.OrderID, fj.FillQty, appliedQty),
			), "over_fill")
		}
		return nil
	})
}

// rejectFill handles fills that arrive against a terminal order: the fill
// is dropped (no snapshot mutation) and the strategy is paused with an
// alert for operator attention.
func (e *Engine) rejectFill(ctx context.Context, stratID int64, fj schema.FillJournal, cause error) error {
	var brief, rule string
	switch {
	case errors.Is(cause, exception.ErrOrderAlreadyFilled):
		brief = "fill on completely filled order"
		rule = "fill_after_filled"
	case errors.Is(cause, exception.ErrOrderFillAfterDod):
		// The fill's notional is dropped entirely: the cancel confirmation
		// already released the open quantity.
		brief = "fill after cancel confirmation"
		rule = "fill_after_dod"
	default:
		return e.abortCascade("order_snapshot", cause)
	}

	logs.Errorf("%s: order %s fill_qty %d dropped", brief, fj.OrderID, fj.FillQty)
	if err := e.pauseWithAlert(ctx, stratID, schema.NewAlert(
		schema.SeverityError,
		brief,
		fmt.Sprintf("order_id: %s, fill_id: %s, fill_qty: %d", fj.OrderID, fj.FillID, fj.FillQty),
	), rule); err != nil {
		logs.Errorf("pause strat %d after rejected fill: %+v", stratID, err)
	}
	return cause
}

// cascadeFill runs steps (a)-(d) for an applied fill portion.
func (e *Engine) cascadeFill(ctx context.Context, fj schema.FillJournal, snap schema.OrderSnapshot, ps schema.PairStrat, appliedQty int64, appliedNotional, usdFillPx float64) error {
	sss, err := e.updateSymbolSideForFill(ctx, snap, appliedQty, appliedNotional, fj.FillPx)
	if err != nil {
		return e.abortCascade("symbol_side_snapshot", err)
	}

	brief, residual, err := e.updateBrief(ctx, ps, snap, sss, briefDelta{})
	if err != nil {
		return e.abortCascade("strat_brief", err)
	}

	usdOrderPx, err := e.usdPx(snap.OrderBrief.Px, snap.OrderBrief.Security.SecID)
	if err != nil {
		return e.abortCascade("strat_status", errors.Wrap(err, "order usd px"))
	}
	releasedNotional := usdOrderPx * float64(appliedQty)

	err = e.updateStratStatusForFill(ctx, ps.ID, snap, appliedQty, appliedNotional,
		releasedNotional, ps.StratLimits.MaxCbNotional, brief, sss, residual)
	if err != nil {
		return e.abortCascade("strat_status", err)
	}

	notionalAdjust := (usdFillPx - usdOrderPx) * float64(appliedQty)
	if err := e.updatePortfolioForFill(ctx, snap.OrderBrief.Side, notionalAdjust, appliedNotional); err != nil {
		return e.abortCascade("portfolio_status", err)
	}
	return nil
}

// pauseWithAlert forces the strategy to PAUSED (when active) and attaches
// the alert to its status.
func (e *Engine) pauseWithAlert(ctx context.Context, stratID int64, alert schema.Alert, rule string) error {
	_, err := e.store.PairStrats.Update(ctx, stratID, func(p *schema.PairStrat) error {
		p.StratStatus.StratAlerts = append(p.StratStatus.StratAlerts, alert)
		if p.StratStatus.StratState == schema.StratStateActive {
			p.StratStatus.StratState = schema.StratStatePaused
		}
		p.Frequency++
		p.LastActiveTime = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}
	e.metrics.IncAlert(alert.Severity)
	e.metrics.IncPause(rule)
	return nil
}
