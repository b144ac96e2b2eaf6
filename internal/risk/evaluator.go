// Package risk evaluates strategy limits against current aggregates and
// decides forced pause transitions. The evaluator is a pure function of its
// inputs; the reconciliation engine applies the returned alerts and state
// change.
package risk

import (
	"fmt"

	"stratmgr/internal/schema"
)

// Result is the outcome of one evaluation pass.
type Result struct {
	Alerts []schema.Alert
	Pause  bool
}

// Check is an externally supplied rule composed with the built-in ones.
// Returning ok=false means the rule did not trigger.
type Check func(ps schema.PairStrat, side schema.PairSideTradingBrief, sss schema.SymbolSideSnapshot) (alert schema.Alert, pause bool, ok bool)

// Evaluator runs the built-in limit rules plus any registered extra checks.
type Evaluator struct {
	extra []Check
}

// NewEvaluator creates an evaluator with optional extra checks.
func NewEvaluator(extra ...Check) *Evaluator {
	return &Evaluator{extra: extra}
}

// Evaluate runs every rule independently against the strategy, the touched
// side's trading brief, and its symbol-side aggregate. Any rule can trigger
// a pause.
func (e *Evaluator) Evaluate(ps schema.PairStrat, brief schema.StratBrief, sss schema.SymbolSideSnapshot) Result {
	var result Result

	side := brief.BriefFor(sss.Side)
	if side == nil {
		return result
	}

	if alert, ok := checkResidual(ps); ok {
		result.Alerts = append(result.Alerts, alert)
		result.Pause = true
	}
	if alert, ok := checkCancelRate(ps, *side, sss); ok {
		result.Alerts = append(result.Alerts, alert)
		result.Pause = true
	}
	for _, check := range e.extra {
		alert, pause, ok := check(ps, *side, sss)
		if !ok {
			continue
		}
		result.Alerts = append(result.Alerts, alert)
		result.Pause = result.Pause || pause
	}

	return result
}

func checkResidual(ps schema.PairStrat) (schema.Alert, bool) {
	maxResidual := ps.StratLimits.ResidualRestriction.MaxResidual
	residual := ps.StratStatus.Residual.ResidualNotional
	if residual <= maxResidual {
		return schema.Alert{}, false
	}
	return schema.NewAlert(
		schema.SeverityError,
		"residual notional exceeds max residual",
		fmt.Sprintf("residual_notional: %.2f, max_residual: %.2f, strat_id: %d", residual, maxResidual, ps.ID),
	), true
}

func checkCancelRate(ps schema.PairStrat, side schema.PairSideTradingBrief, sss schema.SymbolSideSnapshot) (schema.Alert, bool) {
	if sss.OrderCount <= ps.StratLimits.CancelRate.WaivedMinOrders {
		return schema.Alert{}, false
	}
	// A side that never had a broker cancel is exempt even past the waiver.
	if side.AllBkrCxlledQty <= 0 {
		return schema.Alert{}, false
	}
	if side.ConsumableCxlQty >= 0 {
		return schema.Alert{}, false
	}
	return schema.NewAlert(
		schema.SeverityError,
		"Consumable cxl qty can't be < 0",
		fmt.Sprintf("consumable_cxl_qty: %.2f, sec: %s, side: %s, strat_id: %d",
			side.ConsumableCxlQty, sss.Security.SecID, sss.Side, ps.ID),
	), true
}
