package recon

import (
	"context"

	"github.com/yanun0323/errors"

	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

// updateSymbolSideForOrderEvent folds one order event into the (security,
// side) aggregate. The aggregate is created lazily on the first NEW event
// and must already exist for every other event type.
func (e *Engine) updateSymbolSideForOrderEvent(ctx context.Context, oj schema.OrderJournal, snap schema.OrderSnapshot) (schema.SymbolSideSnapshot, error) {
	secID := snap.OrderBrief.Security.SecID
	side := snap.OrderBrief.Side

	if oj.OrderEventType == schema.OrderEventNew {
		_, err := e.store.SymbolSides.Get(ctx, secID, side)
		if errors.Is(err, exception.ErrNotFound) {
			return e.store.SymbolSides.Create(ctx, schema.SymbolSideSnapshot{
				Security:       snap.OrderBrief.Security,
				Side:           side,
				AvgPx:          snap.OrderBrief.Px,
				TotalQty:       snap.OrderBrief.Qty,
				OrderCount:     1,
				LastUpdateTime: oj.EventTime,
			})
		}
		if err != nil {
			return schema.SymbolSideSnapshot{}, errors.Wrap(err, "read symbol side snapshot")
		}
		return e.store.SymbolSides.Update(ctx, secID, side, func(sss *schema.SymbolSideSnapshot) error {
			newTotal := sss.TotalQty + snap.OrderBrief.Qty
			if newTotal > 0 {
				sss.AvgPx = (sss.AvgPx*float64(sss.TotalQty) + snap.OrderBrief.Px*float64(snap.OrderBrief.Qty)) / float64(newTotal)
			}
			sss.TotalQty = newTotal
			sss.OrderCount++
			sss.LastUpdateTime = oj.EventTime
			return nil
		})
	}

	return e.store.SymbolSides.Update(ctx, secID, side, func(sss *schema.SymbolSideSnapshot) error {
		switch oj.OrderEventType {
		case schema.OrderEventCxlAck, schema.OrderEventRej:
			sss.TotalCxledQty += snap.CxledQty
			sss.TotalCxledNotional += snap.CxledNotional
			if sss.TotalCxledQty > 0 {
				sss.AvgCxledPx = sss.TotalCxledNotional / float64(sss.TotalCxledQty)
			} else {
				sss.AvgCxledPx = 0
			}
		}
		sss.LastUpdateTime = oj.EventTime
		return nil
	})
}

// updateSymbolSideForFill folds an applied fill portion into the aggregate.
func (e *Engine) updateSymbolSideForFill(ctx context.Context, snap schema.OrderSnapshot, appliedQty int64, appliedNotional float64, fillPx float64) (schema.SymbolSideSnapshot, error) {
	return e.store.SymbolSides.Update(ctx, snap.OrderBrief.Security.SecID, snap.OrderBrief.Side, func(sss *schema.SymbolSideSnapshot) error {
		sss.TotalFilledQty += appliedQty
		sss.TotalFillNotional += appliedNotional
		if sss.TotalFilledQty > 0 {
			sss.AvgFillPx = sss.TotalFillNotional / float64(sss.TotalFilledQty)
		} else {
			sss.AvgFillPx = 0
		}
		sss.LastUpdateFillQty = appliedQty
		sss.LastUpdateFillPx = fillPx
		sss.LastUpdateTime = snap.LastUpdateTime
		return nil
	})
}
