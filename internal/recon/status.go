package recon

import (
	"context"
	"time"

	"stratmgr/internal/schema"
)

// applyStratStatus runs one strat-status update: fold the event-specific
// counter mutation, rederive the dependent aggregates, merge the residual,
// and evaluate risk limits. A triggered pause and its alerts land in the
// same persisted update.
func (e *Engine) applyStratStatus(
	ctx context.Context,
	stratID int64,
	brief schema.StratBrief,
	sss schema.SymbolSideSnapshot,
	residual *schema.Residual,
	mutate func(st *schema.StratStatus),
) error {
	_, err := e.store.PairStrats.Update(ctx, stratID, func(p *schema.PairStrat) error {
		st := &p.StratStatus
		mutate(st)
		deriveStratStatus(st)
		if residual != nil {
			st.Residual = *residual
		}

		result := e.evaluator.Evaluate(*p, brief, sss)
		for _, alert := range result.Alerts {
			st.StratAlerts = append(st.StratAlerts, alert)
			e.metrics.IncAlert(alert.Severity)
		}
		if result.Pause && st.StratState == schema.StratStateActive {
			st.StratState = schema.StratStatePaused
			e.metrics.IncPause("limit_breach")
		}

		p.Frequency++
		p.LastActiveTime = time.Now().UTC()
		return nil
	})
	return err
}

// updateStratStatus folds one order event into the owning strategy's status.
func (e *Engine) updateStratStatus(
	ctx context.Context,
	stratID int64,
	event schema.OrderEventType,
	snap schema.OrderSnapshot,
	brief schema.StratBrief,
	sss schema.SymbolSideSnapshot,
	residual *schema.Residual,
) error {
	return e.applyStratStatus(ctx, stratID, brief, sss, residual, func(st *schema.StratStatus) {
		buy := snap.OrderBrief.Side == schema.SideBuy
		switch event {
		case schema.OrderEventNew:
			if buy {
				st.TotalBuyQty += snap.OrderBrief.Qty
				st.TotalOpenBuyQty += snap.OrderBrief.Qty
				st.TotalOpenBuyNotional += snap.OrderBrief.OrderNotional
			} else {
				st.TotalSellQty += snap.OrderBrief.Qty
				st.TotalOpenSellQty += snap.OrderBrief.Qty
				st.TotalOpenSellNotional += snap.OrderBrief.OrderNotional
			}
		case schema.OrderEventCxlAck, schema.OrderEventRej:
			if buy {
				st.TotalOpenBuyQty -= snap.CxledQty
				st.TotalOpenBuyNotional -= snap.CxledNotional
				st.TotalCxlBuyQty += snap.CxledQty
				st.TotalCxlBuyNotional += snap.CxledNotional
			} else {
				st.TotalOpenSellQty -= snap.CxledQty
				st.TotalOpenSellNotional -= snap.CxledNotional
				st.TotalCxlSellQty += snap.CxledQty
				st.TotalCxlSellNotional += snap.CxledNotional
			}
		}
	})
}

// updateStratStatusForFill folds one applied fill into the owning
// strategy's status. The open bucket was credited at the order price on
// NEW, so it is released at the order price (releasedNotional); the fill
// buckets take the executed fill-price notional.
func (e *Engine) updateStratStatusForFill(
	ctx context.Context,
	stratID int64,
	snap schema.OrderSnapshot,
	appliedQty int64,
	appliedNotional float64,
	releasedNotional float64,
	maxCbNotional float64,
	brief schema.StratBrief,
	sss schema.SymbolSideSnapshot,
	residual *schema.Residual,
) error {
	return e.applyStratStatus(ctx, stratID, brief, sss, residual, func(st *schema.StratStatus) {
		if snap.OrderBrief.Side == schema.SideBuy {
			st.TotalFillBuyQty += appliedQty
			st.TotalFillBuyNotional += appliedNotional
			st.TotalOpenBuyQty -= appliedQty
			st.TotalOpenBuyNotional -= releasedNotional
		} else {
			st.TotalFillSellQty += appliedQty
			st.TotalFillSellNotional += appliedNotional
			st.TotalOpenSellQty -= appliedQty
			st.TotalOpenSellNotional -= releasedNotional
		}
		filled := st.TotalFillBuyNotional
		if st.TotalFillSellNotional > filled {
			filled = st.TotalFillSellNotional
		}
		st.BalanceNotional = maxCbNotional - filled
	})
}

// deriveStratStatus recomputes the aggregates that depend on the side
// counters.
func deriveStratStatus(st *schema.StratStatus) {
	st.TotalOrderQty = st.TotalBuyQty + st.TotalSellQty
	st.TotalOpenExposure = st.TotalOpenBuyNotional - st.TotalOpenSellNotional
	st.TotalFillExposure = st.TotalFillBuyNotional - st.TotalFillSellNotional
	st.TotalCxlExposure = st.TotalCxlBuyNotional - st.TotalCxlSellNotional

	st.AvgOpenBuyPx = avgPx(st.TotalOpenBuyNotional, st.TotalOpenBuyQty)
	st.AvgOpenSellPx = avgPx(st.TotalOpenSellNotional, st.TotalOpenSellQty)
	st.AvgFillBuyPx = avgPx(st.TotalFillBuyNotional, st.TotalFillBuyQty)
	st.AvgFillSellPx = avgPx(st.TotalFillSellNotional, st.TotalFillSellQty)
	st.AvgCxlBuyPx = avgPx(st.TotalCxlBuyNotional, st.TotalCxlBuyQty)
	st.AvgCxlSellPx = avgPx(st.TotalCxlSellNotional, st.TotalCxlSellQty)
}

func avgPx(notional float64, qty int64) float64 {
	if qty == 0 {
		return 0
	}
	return notional / float64(qty)
}
