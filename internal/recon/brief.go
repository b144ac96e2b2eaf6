package recon

import (
	"context"
	"math"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stratmgr/internal/schema"
)

// briefDelta carries the per-event increments folded into the touched leg's
// trading brief alongside the full consumable recompute.
type briefDelta struct {
	residualQty      int64
	bkrCxlledQty     int64
	participationQty int64
}

// orderEventBriefDelta derives the brief increments for one order event.
func orderEventBriefDelta(oj schema.OrderJournal, snap schema.OrderSnapshot) briefDelta {
	switch oj.OrderEventType {
	case schema.OrderEventNew:
		return briefDelta{participationQty: snap.OrderBrief.Qty}
	case schema.OrderEventCxlAck, schema.OrderEventRej:
		// Cancel confirmation carries the unfilled quantity into the
		// residual and the broker-cancelled total.
		return briefDelta{
			residualQty:  snap.OrderBrief.Qty - snap.FilledQty,
			bkrCxlledQty: snap.CxledQty,
		}
	default:
		return briefDelta{}
	}
}

// updateBrief recomputes the touched leg's consumable limits from the
// symbol-side aggregate and the strategy limits, folds in the event deltas,
// and refreshes the paired-leg residual. The returned residual is nil when
// market data was unavailable for both legs.
func (e *Engine) updateBrief(ctx context.Context, ps schema.PairStrat, snap schema.OrderSnapshot, sss schema.SymbolSideSnapshot, delta briefDelta) (schema.StratBrief, *schema.Residual, error) {
	secID := snap.OrderBrief.Security.SecID
	side := snap.OrderBrief.Side

	openOrders, err := e.store.OrderSnapshots.CountOpenBySymbolSide(ctx, secID, side)
	if err != nil {
		return schema.StratBrief{}, nil, errors.Wrap(err, "count open orders")
	}
	usdPx, err := e.usdPx(snap.OrderBrief.Px, secID)
	if err != nil {
		return schema.StratBrief{}, nil, errors.Wrap(err, "brief usd px")
	}

	if delta.participationQty > 0 {
		e.participation.add(ps.ID, side, delta.participationQty)
	}
	period := time.Duration(ps.StratLimits.MarketParticipation.ApplicablePeriodSeconds) * time.Second
	ownPeriodQty := e.participation.sum(ps.ID, side, period)

	var residual *schema.Residual
	brief, err := e.store.StratBriefs.Update(ctx, ps.ID, func(b *schema.StratBrief) error {
		own := b.BriefFor(side)
		e.recomputeSide(own, ps.StratLimits, sss, usdPx, openOrders, delta, ownPeriodQty)
		own.LastUpdateTime = snap.LastUpdateTime
		b.LastUpdateTime = snap.LastUpdateTime

		other := b.BriefFor(side.Opposite())
		residual = e.computeResidual(own, other, ps.StratLimits)
		return nil
	})
	if err != nil {
		return schema.StratBrief{}, nil, err
	}
	return brief, residual, nil
}

// recomputeSide applies the consumable-limit formulas for one leg.
// ownPeriodQty is the leg's own-order quantity within the participation
// window, already aged alongside the market volume window.
func (e *Engine) recomputeSide(side *schema.PairSideTradingBrief, limits schema.StratLimits, sss schema.SymbolSideSnapshot, usdPx float64, openOrders int64, delta briefDelta, ownPeriodQty int64) {
	openQty := sss.TotalQty - (sss.TotalFilledQty + sss.TotalCxledQty)
	openNotional := float64(openQty) * usdPx

	side.OpenQty = openQty
	side.OpenNotional = openNotional
	side.ConsumableNotional = limits.MaxCbNotional - sss.TotalFillNotional - openNotional
	side.ConsumableOpenNotional = limits.MaxOpenCbNotional - openNotional
	side.ConsumableOpenOrders = limits.MaxOpenOrdersPerSide - openOrders

	if secFloat, ok := e.refData.SecurityFloat(sss.Security.SecID); ok {
		side.ConsumableConcentration = float64(secFloat)/100*limits.MaxConcentration - float64(openQty+sss.TotalFilledQty)
	} else {
		side.ConsumableConcentration = 0
	}

	tradedQty := sss.TotalFilledQty + openQty + sss.TotalCxledQty
	side.ConsumableCxlQty = float64(tradedQty)/100*float64(limits.CancelRate.MaxCancelRate) - float64(sss.TotalCxledQty)

	side.ParticipationPeriodOrderQtySum = ownPeriodQty
	period := time.Duration(limits.MarketParticipation.ApplicablePeriodSeconds) * time.Second
	marketQty := e.volume.TradedQtySince(sss.Security.SecID, period)
	side.IndicativeConsumableParticipationQty =
		int64(float64(marketQty)/100*limits.MarketParticipation.MaxParticipationRate) - side.ParticipationPeriodOrderQtySum

	side.ResidualQty += delta.residualQty
	side.AllBkrCxlledQty += delta.bkrCxlledQty
}

// computeResidual prices both legs' residual quantities off their last
// trades and attributes the imbalance to the heavier leg. A leg with no
// top-of-book contributes zero; when both are missing the computation is
// skipped entirely.
func (e *Engine) computeResidual(own, other *schema.PairSideTradingBrief, limits schema.StratLimits) *schema.Residual {
	ownUsd, ownErr := e.legLastTradeUsdPx(own.Security.SecID)
	otherUsd, otherErr := e.legLastTradeUsdPx(other.Security.SecID)
	if ownErr != nil && otherErr != nil {
		logs.Errorf("residual skipped, no top of book for %s nor %s: %+v / %+v",
			own.Security.SecID, other.Security.SecID, ownErr, otherErr)
		return nil
	}

	ownProduct := float64(own.ResidualQty) * ownUsd
	otherProduct := float64(other.ResidualQty) * otherUsd
	residual := schema.Residual{
		Security:         own.Security,
		ResidualNotional: math.Abs(ownProduct - otherProduct),
	}
	if otherProduct > ownProduct {
		residual.Security = other.Security
	}

	indicative := limits.ResidualRestriction.MaxResidual - residual.ResidualNotional
	own.IndicativeConsumableResidual = indicative
	other.IndicativeConsumableResidual = indicative
	return &residual
}

func (e *Engine) legLastTradeUsdPx(secID string) (float64, error) {
	px, err := e.lastTradePx(secID)
	if err != nil {
		return 0, err
	}
	return e.usdPx(px, secID)
}
