package recon

import (
	"context"

	"stratmgr/internal/schema"
)

// updatePortfolioForOrderEvent adjusts the global notional aggregates for
// one order event. ACK/CXL/CXL_REJ leave the portfolio untouched.
func (e *Engine) updatePortfolioForOrderEvent(ctx context.Context, oj schema.OrderJournal, snap schema.OrderSnapshot) error {
	var delta float64
	switch oj.OrderEventType {
	case schema.OrderEventNew:
		delta = snap.OrderBrief.OrderNotional
	case schema.OrderEventCxlAck, schema.OrderEventRej:
		delta = -snap.CxledNotional
	default:
		return nil
	}
	return e.adjustPortfolio(ctx, snap.OrderBrief.Side, delta, 0)
}

// updatePortfolioForFill applies the fill-notional increment plus the
// px-difference adjustment of the outstanding order notional.
func (e *Engine) updatePortfolioForFill(ctx context.Context, side schema.Side, notionalAdjust, fillNotional float64) error {
	return e.adjustPortfolio(ctx, side, notionalAdjust, fillNotional)
}

func (e *Engine) adjustPortfolio(ctx context.Context, side schema.Side, notionalDelta, fillNotionalDelta float64) error {
	return e.withPortfolioLock(ctx, func() error {
		if _, err := e.store.Portfolio.GetOrCreate(ctx); err != nil {
			return err
		}
		status, err := e.store.Portfolio.Update(ctx, func(p *schema.PortfolioStatus) error {
			if side == schema.SideBuy {
				p.OverallBuyNotional += notionalDelta
				p.OverallBuyFillNotional += fillNotionalDelta
			} else {
				p.OverallSellNotional += notionalDelta
				p.OverallSellFillNotional += fillNotionalDelta
			}
			return nil
		})
		if err != nil {
			return err
		}
		e.metrics.SetKillSwitch(status.KillSwitch)
		return nil
	})
}
