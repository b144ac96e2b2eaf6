package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, SideUnknown, SideUnknown.Opposite())
}

func TestOrderStatusClassification(t *testing.T) {
	open := []OrderStatus{OrderStatusUnacked, OrderStatusAcked, OrderStatusCxlUnacked}
	for _, s := range open {
		assert.True(t, s.IsOpen(), s.String())
		assert.False(t, s.IsTerminal(), s.String())
	}
	terminal := []OrderStatus{OrderStatusFilled, OrderStatusOverFilled, OrderStatusDod}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), s.String())
		assert.False(t, s.IsOpen(), s.String())
	}
}

func TestStratStateIsOngoing(t *testing.T) {
	assert.True(t, StratStateActive.IsOngoing())
	assert.True(t, StratStatePaused.IsOngoing())
	assert.True(t, StratStateError.IsOngoing())
	assert.False(t, StratStateReady.IsOngoing())
	assert.False(t, StratStateSnoozed.IsOngoing())
	assert.False(t, StratStateDone.IsOngoing())
}

func TestLegFor(t *testing.T) {
	ps := PairStrat{
		Params: PairStratParams{
			Leg1: StratLeg{Sec: Security{SecID: "CB_Sec_1"}, Side: SideBuy},
			Leg2: StratLeg{Sec: Security{SecID: "EQT_Sec_1"}, Side: SideSell},
		},
	}

	leg, ok := ps.LegFor("CB_Sec_1", SideBuy)
	require.True(t, ok)
	assert.Equal(t, "CB_Sec_1", leg.Sec.SecID)

	_, ok = ps.LegFor("CB_Sec_1", SideSell)
	assert.False(t, ok)

	other := ps.OtherLeg("CB_Sec_1")
	assert.Equal(t, "EQT_Sec_1", other.Sec.SecID)
}

func TestBriefFor(t *testing.T) {
	b := StratBrief{
		BuySideBrief:  PairSideTradingBrief{Side: SideBuy, OpenQty: 10},
		SellSideBrief: PairSideTradingBrief{Side: SideSell, OpenQty: 20},
	}
	assert.Equal(t, int64(10), b.BriefFor(SideBuy).OpenQty)
	assert.Equal(t, int64(20), b.BriefFor(SideSell).OpenQty)

	// The returned pointer aliases the brief for in-place updates.
	b.BriefFor(SideBuy).OpenQty = 15
	assert.Equal(t, int64(15), b.BuySideBrief.OpenQty)
}

func TestNewAlert(t *testing.T) {
	a := NewAlert(SeverityError, "residual notional exceeds max residual", "detail")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, SeverityError, a.Severity)
	assert.False(t, a.LastUpdateTime.IsZero())

	b := NewAlert(SeverityError, "residual notional exceeds max residual", "detail")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddSecurity(SecurityDef{SecID: "CB_Sec_1", SecurityFloat: 100000}))
	assert.Error(t, reg.AddSecurity(SecurityDef{SecID: "CB_Sec_1"}))
	assert.Error(t, reg.AddSecurity(SecurityDef{}))

	def, ok := reg.Security("CB_Sec_1")
	require.True(t, ok)
	// Unset fx rate defaults to parity.
	assert.Equal(t, float64(1), def.UsdFxRate)
	assert.Equal(t, 1, reg.SecurityCount())
}

func TestNewHeader(t *testing.T) {
	h := NewHeader(EventOrderJournal, 2, 7, 100, 200)
	assert.Equal(t, EventOrderJournal, h.Type)
	assert.Equal(t, SchemaVersion, h.Version)
	assert.Equal(t, uint16(2), h.Source)
	assert.Equal(t, uint64(7), h.Seq)
	assert.Equal(t, int64(100), h.TsEvent)
	assert.Equal(t, int64(200), h.TsRecv)
}
