package recon

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

// HandleOrderJournal consumes one order lifecycle event and reconciles the
// full cascade for its strategy. Events for the same strategy are serialized
// by the strat lock; a failed step aborts the rest of the cascade without
// rolling back upstream mutations.
func (e *Engine) HandleOrderJournal(ctx context.Context, oj schema.OrderJournal) error {
	start := time.Now()
	err := e.handleOrderJournal(ctx, oj)
	e.metrics.ObserveEvent(oj.OrderEventType.String(), err, time.Since(start))
	return err
}

func (e *Engine) handleOrderJournal(ctx context.Context, oj schema.OrderJournal) error {
	if !e.Ready() {
		return exception.ErrServiceUnavailable
	}

	if oj.OrderEventType == schema.OrderEventNew {
		if err := e.primeNewOrder(&oj); err != nil {
			return err
		}
	}

	if _, err := e.store.OrderJournals.Append(ctx, oj); err != nil {
		return errors.Wrap(err, "append order journal").With("order_id", oj.Order.OrderID)
	}

	ps, err := e.store.PairStrats.FindOngoingBySymbolSide(ctx, oj.Order.Security.SecID, oj.Order.Side)
	if err != nil {
		return e.abortCascade("resolve_strat",
			errors.Wrap(err, "no ongoing strat").
				With("sec", oj.Order.Security.SecID).
				With("side", oj.Order.Side.String()))
	}

	return e.withStratLock(ctx, ps.ID, func() error {
		snap, err := e.applyOrderEvent(ctx, oj)
		if err != nil {
			return e.abortCascade("order_snapshot", err)
		}
		return e.cascadeOrderEvent(ctx, oj, snap, ps)
	})
}

// primeNewOrder substitutes a zero price with the last trade price and
// computes the USD order notional before any state mutation.
func (e *Engine) primeNewOrder(oj *schema.OrderJournal) error {
	secID := oj.Order.Security.SecID
	if oj.Order.Px == 0 {
		px, err := e.lastTradePx(secID)
		if err != nil {
			return errors.Wrap(err, "substitute last trade px").With("sec", secID)
		}
		oj.Order.Px = px
	}
	usdPx, err := e.usdPx(oj.Order.Px, secID)
	if err != nil {
		return errors.Wrap(err, "order notional usd px").With("sec", secID)
	}
	oj.Order.OrderNotional = usdPx * float64(oj.Order.Qty)
	return nil
}

// applyOrderEvent mutates the OrderSnapshot for one journal event and
// returns the resulting snapshot.
func (e *Engine) applyOrderEvent(ctx context.Context, oj schema.OrderJournal) (schema.OrderSnapshot, error) {
	switch oj.OrderEventType {
	case schema.OrderEventNew:
		return e.store.OrderSnapshots.Create(ctx, schema.OrderSnapshot{
			OrderBrief:     oj.Order,
			OrderStatus:    schema.OrderStatusUnacked,
			CreateTime:     oj.EventTime,
			LastUpdateTime: oj.EventTime,
		})
	case schema.OrderEventAck:
		return e.store.OrderSnapshots.Update(ctx, oj.Order.OrderID, func(snap *schema.OrderSnapshot) error {
			if snap.OrderStatus != schema.OrderStatusUnacked {
				return invalidTransition(snap.OrderStatus, oj.OrderEventType)
			}
			snap.OrderStatus = schema.OrderStatusAcked
			snap.LastUpdateTime = oj.EventTime
			return nil
		})
	case schema.OrderEventCxl:
		return e.store.OrderSnapshots.Update(ctx, oj.Order.OrderID, func(snap *schema.OrderSnapshot) error {
			if snap.OrderStatus != schema.OrderStatusAcked {
				return invalidTransition(snap.OrderStatus, oj.OrderEventType)
			}
			snap.OrderStatus = schema.OrderStatusCxlUnacked
			snap.LastUpdateTime = oj.EventTime
			return nil
		})
	case schema.OrderEventCxlAck:
		snap, err := e.applyCancelDone(ctx, oj, nil)
		if err != nil {
			return snap, err
		}
		e.confirmCancelOrder(ctx, oj)
		return snap, nil
	case schema.OrderEventCxlRej:
		return e.applyCancelReject(ctx, oj)
	case schema.OrderEventRej:
		return e.applyCancelDone(ctx, oj, func(status schema.OrderStatus) error {
			if status != schema.OrderStatusUnacked && status != schema.OrderStatusAcked {
				return invalidTransition(status, oj.OrderEventType)
			}
			return nil
		})
	default:
		return schema.OrderSnapshot{}, errors.Errorf("unmapped order event type: %d", oj.OrderEventType)
	}
}

// applyCancelDone handles CXL_ACK and REJ: both terminate the order at DOD
// with identical cancel-notional bookkeeping. precondition overrides the
// tolerant CXL_ACK status check.
func (e *Engine) applyCancelDone(ctx context.Context, oj schema.OrderJournal, precondition func(schema.OrderStatus) error) (schema.OrderSnapshot, error) {
	return e.store.OrderSnapshots.Update(ctx, oj.Order.OrderID, func(snap *schema.OrderSnapshot) error {
		if precondition != nil {
			if err := precondition(snap.OrderStatus); err != nil {
				return err
			}
		} else if !snap.OrderStatus.IsOpen() {
			return invalidTransition(snap.OrderStatus, oj.OrderEventType)
		}

		cxledQty := snap.OrderBrief.Qty - snap.FilledQty
		usdPx, err := e.usdPx(snap.OrderBrief.Px, snap.OrderBrief.Security.SecID)
		if err != nil {
			return errors.Wrap(err, "cancel notional usd px")
		}
		snap.CxledQty = cxledQty
		snap.CxledNotional = float64(cxledQty) * usdPx
		if cxledQty > 0 {
			snap.AvgCxledPx = snap.CxledNotional / float64(cxledQty)
		} else {
			snap.AvgCxledPx = 0
		}
		if oj.OrderEventType == schema.OrderEventRej && len(oj.Order.Text) > 0 {
			snap.OrderBrief.Text = append(snap.OrderBrief.Text, oj.Order.Text...)
		}
		snap.OrderStatus = schema.OrderStatusDod
		snap.LastUpdateTime = oj.EventTime
		return nil
	})
}

// applyCancelReject reverts a CXL_UNACK order to its pre-cancel status,
// derived from quantity bookkeeping and the recent journal history.
func (e *Engine) applyCancelReject(ctx context.Context, oj schema.OrderJournal) (schema.OrderSnapshot, error) {
	history, err := e.store.OrderJournals.LastNByOrderID(ctx, oj.Order.OrderID, journalRevertDepth)
	if err != nil {
		return schema.OrderSnapshot{}, errors.Wrap(err, "read journal history")
	}
	return e.store.OrderSnapshots.Update(ctx, oj.Order.OrderID, func(snap *schema.OrderSnapshot) error {
		if snap.OrderStatus != schema.OrderStatusCxlUnacked {
			return invalidTransition(snap.OrderStatus, oj.OrderEventType)
		}
		switch {
		case snap.OrderBrief.Qty > snap.FilledQty:
			reverted, ok := statusBeforeCancel(history)
			if !ok {
				// Ambiguous history: keep CXL_UNACK so a later event can
				// still resolve the order.
				return exception.ErrOrderAmbiguousJournal
			}
			snap.OrderStatus = reverted
		case snap.OrderBrief.Qty == snap.FilledQty:
			snap.OrderStatus = schema.OrderStatusFilled
		default:
			snap.OrderStatus = schema.OrderStatusOverFilled
		}
		snap.LastUpdateTime = oj.EventTime
		return nil
	})
}

// statusBeforeCancel derives the status that preceded the cancel request
// from the newest-first journal history.
func statusBeforeCancel(history []schema.OrderJournal) (schema.OrderStatus, bool) {
	for _, entry := range history {
		switch entry.OrderEventType {
		case schema.OrderEventCxlRej, schema.OrderEventCxl:
			continue
		case schema.OrderEventAck:
			return schema.OrderStatusAcked, true
		case schema.OrderEventNew:
			return schema.OrderStatusUnacked, true
		default:
			return schema.OrderStatusUnknown, false
		}
	}
	return schema.OrderStatusUnknown, false
}

// confirmCancelOrder flips the pending CancelOrder confirmed, or records an
// unsolicited cancel when none is pending. Failures here never abort the
// cascade.
func (e *Engine) confirmCancelOrder(ctx context.Context, oj schema.OrderJournal) {
	co, err := e.store.CancelOrders.GetByOrderID(ctx, oj.Order.OrderID)
	if err != nil {
		if !errors.Is(err, exception.ErrNotFound) {
			logs.Errorf("read cancel order %s: %+v", oj.Order.OrderID, err)
			return
		}
		_, err = e.store.CancelOrders.Create(ctx, schema.CancelOrder{
			OrderID:      oj.Order.OrderID,
			Security:     oj.Order.Security,
			Side:         oj.Order.Side,
			CxlConfirmed: true,
		})
		if err != nil {
			logs.Errorf("record unsolicited cancel %s: %+v", oj.Order.OrderID, err)
		} else {
			logs.Infof("unsolicited cancel confirmed for order %s", oj.Order.OrderID)
		}
		return
	}
	if co.CxlConfirmed {
		logs.Infof("duplicate cancel confirmation for order %s, skipping", oj.Order.OrderID)
		return
	}
	_, err = e.store.CancelOrders.Update(ctx, oj.Order.OrderID, func(c *schema.CancelOrder) error {
		c.CxlConfirmed = true
		return nil
	})
	if err != nil {
		logs.Errorf("confirm cancel order %s: %+v", oj.Order.OrderID, err)
	}
}

// RequestCancel records a cancel request for an order. A duplicate request
// while one is still unconfirmed is a logged no-op.
func (e *Engine) RequestCancel(ctx context.Context, orderID string, sec schema.Security, side schema.Side) error {
	if !e.Ready() {
		return exception.ErrServiceUnavailable
	}
	existing, err := e.store.CancelOrders.GetByOrderID(ctx, orderID)
	if err == nil {
		if !existing.CxlConfirmed {
			logs.Infof("cancel already requested for order %s, skipping", orderID)
			return nil
		}
		return exception.ErrCancelAlreadyConfirmed
	}
	if !errors.Is(err, exception.ErrNotFound) {
		return errors.Wrap(err, "read cancel order").With("order_id", orderID)
	}
	_, err = e.store.CancelOrders.Create(ctx, schema.CancelOrder{
		OrderID:  orderID,
		Security: sec,
		Side:     side,
	})
	if err != nil {
		return errors.Wrap(err, "create cancel order").With("order_id", orderID)
	}
	return nil
}

// cascadeOrderEvent runs steps (a)-(d) for a successfully applied order
// snapshot mutation: symbol side snapshot, strat brief, strat status,
// portfolio status.
func (e *Engine) cascadeOrderEvent(ctx context.Context, oj schema.OrderJournal, snap schema.OrderSnapshot, ps schema.PairStrat) error {
	sss, err := e.updateSymbolSideForOrderEvent(ctx, oj, snap)
	if err != nil {
		return e.abortCascade("symbol_side_snapshot", err)
	}

	brief, residual, err := e.updateBrief(ctx, ps, snap, sss, orderEventBriefDelta(oj, snap))
	if err != nil {
		return e.abortCascade("strat_brief", err)
	}

	if err := e.updateStratStatus(ctx, ps.ID, oj.OrderEventType, snap, brief, sss, residual); err != nil {
		return e.abortCascade("strat_status", err)
	}

	if err := e.updatePortfolioForOrderEvent(ctx, oj, snap); err != nil {
		return e.abortCascade("portfolio_status", err)
	}
	return nil
}

func invalidTransition(status schema.OrderStatus, event schema.OrderEventType) error {
	return errors.Wrap(exception.ErrOrderInvalidTransition, "apply order event").
		With("event", event.String()).
		With("status", status.String())
}
