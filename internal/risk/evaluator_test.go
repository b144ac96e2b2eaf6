package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratmgr/internal/schema"
)

func pairStrat(maxResidual float64, residual float64, waivedMinOrders int64) schema.PairStrat {
	return schema.PairStrat{
		ID: 1,
		StratLimits: schema.StratLimits{
			ResidualRestriction: schema.ResidualRestriction{MaxResidual: maxResidual},
			CancelRate:          schema.CancelRate{MaxCancelRate: 10, WaivedMinOrders: waivedMinOrders},
		},
		StratStatus: schema.StratStatus{
			StratState: schema.StratStateActive,
			Residual:   schema.Residual{ResidualNotional: residual},
		},
	}
}

func stratBrief(side schema.PairSideTradingBrief) schema.StratBrief {
	return schema.StratBrief{PairStratID: 1, BuySideBrief: side}
}

func buySide(consumableCxlQty float64, allBkrCxlledQty int64) schema.PairSideTradingBrief {
	return schema.PairSideTradingBrief{
		Security:         schema.Security{SecID: "CB_Sec_1"},
		Side:             schema.SideBuy,
		ConsumableCxlQty: consumableCxlQty,
		AllBkrCxlledQty:  allBkrCxlledQty,
	}
}

func buySnapshot(orderCount int64) schema.SymbolSideSnapshot {
	return schema.SymbolSideSnapshot{
		Security:   schema.Security{SecID: "CB_Sec_1"},
		Side:       schema.SideBuy,
		OrderCount: orderCount,
	}
}

func TestEvaluateNoBreach(t *testing.T) {
	e := NewEvaluator()

	result := e.Evaluate(pairStrat(1000, 500, 5), stratBrief(buySide(100, 0)), buySnapshot(3))
	assert.Empty(t, result.Alerts)
	assert.False(t, result.Pause)
}

func TestEvaluateResidualBreach(t *testing.T) {
	e := NewEvaluator()

	result := e.Evaluate(pairStrat(1000, 1500, 5), stratBrief(buySide(100, 0)), buySnapshot(3))
	require.Len(t, result.Alerts, 1)
	assert.True(t, result.Pause)
	assert.Contains(t, result.Alerts[0].AlertBrief, "residual notional")
	assert.Equal(t, schema.SeverityError, result.Alerts[0].Severity)
}

func TestEvaluateZeroMaxResidual(t *testing.T) {
	e := NewEvaluator()

	// Any positive residual against a zero cap must pause.
	result := e.Evaluate(pairStrat(0, 0.01, 5), stratBrief(buySide(100, 0)), buySnapshot(3))
	require.Len(t, result.Alerts, 1)
	assert.True(t, result.Pause)
	assert.Contains(t, result.Alerts[0].AlertBrief, "residual notional")
}

func TestEvaluateCancelRateBreach(t *testing.T) {
	e := NewEvaluator()

	result := e.Evaluate(pairStrat(1000, 0, 5), stratBrief(buySide(-20, 90)), buySnapshot(6))
	require.Len(t, result.Alerts, 1)
	assert.True(t, result.Pause)
	assert.Contains(t, result.Alerts[0].AlertBrief, "Consumable cxl qty can't be < 0")
}

func TestEvaluateCancelRateWaived(t *testing.T) {
	e := NewEvaluator()

	// Order count still inside the waiver window.
	result := e.Evaluate(pairStrat(1000, 0, 5), stratBrief(buySide(-20, 90)), buySnapshot(5))
	assert.Empty(t, result.Alerts)
	assert.False(t, result.Pause)
}

func TestEvaluateCancelRateZeroCxlExempt(t *testing.T) {
	e := NewEvaluator()

	// Negative consumable but no broker cancels: exempt past the waiver.
	result := e.Evaluate(pairStrat(1000, 0, 5), stratBrief(buySide(-20, 0)), buySnapshot(10))
	assert.Empty(t, result.Alerts)
	assert.False(t, result.Pause)
}

func TestEvaluateComposesExtraChecks(t *testing.T) {
	custom := func(ps schema.PairStrat, side schema.PairSideTradingBrief, sss schema.SymbolSideSnapshot) (schema.Alert, bool, bool) {
		if side.OpenQty > 100 {
			return schema.NewAlert(schema.SeverityWarning, "open qty too large", ""), true, true
		}
		return schema.Alert{}, false, false
	}
	e := NewEvaluator(custom)

	side := buySide(100, 0)
	side.OpenQty = 150
	result := e.Evaluate(pairStrat(1000, 0, 5), stratBrief(side), buySnapshot(1))
	require.Len(t, result.Alerts, 1)
	assert.True(t, result.Pause)
	assert.Equal(t, "open qty too large", result.Alerts[0].AlertBrief)
}

func TestEvaluateIsPure(t *testing.T) {
	e := NewEvaluator()

	ps := pairStrat(1000, 1500, 5)
	brief := stratBrief(buySide(-20, 90))
	sss := buySnapshot(10)

	first := e.Evaluate(ps, brief, sss)
	second := e.Evaluate(ps, brief, sss)
	assert.Equal(t, len(first.Alerts), len(second.Alerts))
	assert.Equal(t, first.Pause, second.Pause)
	assert.Equal(t, schema.StratStateActive, ps.StratStatus.StratState, "inputs must not be mutated")
}
