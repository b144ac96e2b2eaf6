package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

func TestOrderSnapshotStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	snap := schema.OrderSnapshot{
		OrderBrief: schema.OrderBrief{
			OrderID:  "O-1",
			Security: schema.Security{SecID: "CB_Sec_1"},
			Side:     schema.SideBuy,
			Px:       100,
			Qty:      90,
		},
		OrderStatus: schema.OrderStatusUnacked,
	}

	created, err := s.OrderSnapshots.Create(ctx, snap)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = s.OrderSnapshots.Create(ctx, snap)
	assert.ErrorIs(t, err, exception.ErrDuplicateRecord)

	got, err := s.OrderSnapshots.GetByOrderID(ctx, "O-1")
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusUnacked, got.OrderStatus)

	_, err = s.OrderSnapshots.GetByOrderID(ctx, "O-404")
	assert.ErrorIs(t, err, exception.ErrNotFound)

	updated, err := s.OrderSnapshots.Update(ctx, "O-1", func(os *schema.OrderSnapshot) error {
		os.OrderStatus = schema.OrderStatusAcked
		os.FilledQty = 40
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusAcked, updated.OrderStatus)
	assert.EqualValues(t, 40, updated.FilledQty)

	count, err := s.OrderSnapshots.CountOpenBySymbolSide(ctx, "CB_Sec_1", schema.SideBuy)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = s.OrderSnapshots.Update(ctx, "O-1", func(os *schema.OrderSnapshot) error {
		os.OrderStatus = schema.OrderStatusDod
		return nil
	})
	require.NoError(t, err)

	count, err = s.OrderSnapshots.CountOpenBySymbolSide(ctx, "CB_Sec_1", schema.SideBuy)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.OrderSnapshots.DeleteBySymbols(ctx, "CB_Sec_1"))
	_, err = s.OrderSnapshots.GetByOrderID(ctx, "O-1")
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestOrderSnapshotUpdateRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.OrderSnapshots.Create(ctx, schema.OrderSnapshot{
		OrderBrief:  schema.OrderBrief{OrderID: "O-1", Qty: 50},
		OrderStatus: schema.OrderStatusFilled,
	})
	require.NoError(t, err)

	_, err = s.OrderSnapshots.Update(ctx, "O-1", func(os *schema.OrderSnapshot) error {
		os.FilledQty = 999
		return exception.ErrOrderAlreadyFilled
	})
	assert.ErrorIs(t, err, exception.ErrOrderAlreadyFilled)

	got, err := s.OrderSnapshots.GetByOrderID(ctx, "O-1")
	require.NoError(t, err)
	assert.Zero(t, got.FilledQty, "failed update must not mutate stored state")
}

func TestSymbolSideSnapshotStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.SymbolSides.Create(ctx, schema.SymbolSideSnapshot{
		Security: schema.Security{SecID: "CB_Sec_1"},
		Side:     schema.SideBuy,
	})
	require.NoError(t, err)

	_, err = s.SymbolSides.Create(ctx, schema.SymbolSideSnapshot{
		Security: schema.Security{SecID: "CB_Sec_1"},
		Side:     schema.SideBuy,
	})
	assert.ErrorIs(t, err, exception.ErrDuplicateRecord)

	_, err = s.SymbolSides.Create(ctx, schema.SymbolSideSnapshot{
		Security: schema.Security{SecID: "CB_Sec_1"},
		Side:     schema.SideSell,
	})
	require.NoError(t, err, "same symbol, other side is a distinct aggregate")

	updated, err := s.SymbolSides.Update(ctx, "CB_Sec_1", schema.SideBuy, func(sss *schema.SymbolSideSnapshot) error {
		sss.TotalQty = 90
		sss.OrderCount = 1
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 90, updated.TotalQty)

	_, err = s.SymbolSides.Get(ctx, "EQT_Sec_2", schema.SideSell)
	assert.ErrorIs(t, err, exception.ErrNotFound)

	require.NoError(t, s.SymbolSides.DeleteBySymbols(ctx, "CB_Sec_1"))
	_, err = s.SymbolSides.Get(ctx, "CB_Sec_1", schema.SideBuy)
	assert.ErrorIs(t, err, exception.ErrNotFound)
	_, err = s.SymbolSides.Get(ctx, "CB_Sec_1", schema.SideSell)
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestStratBriefStoreBySymbol(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	brief := schema.StratBrief{
		PairStratID:   7,
		BuySideBrief:  schema.PairSideTradingBrief{Security: schema.Security{SecID: "CB_Sec_1"}, Side: schema.SideBuy},
		SellSideBrief: schema.PairSideTradingBrief{Security: schema.Security{SecID: "EQT_Sec_1"}, Side: schema.SideSell},
	}
	_, err := s.StratBriefs.Create(ctx, brief)
	require.NoError(t, err)

	got, err := s.StratBriefs.GetBySymbol(ctx, "EQT_Sec_1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.PairStratID)

	_, err = s.StratBriefs.GetBySymbol(ctx, "EQT_Sec_404")
	assert.ErrorIs(t, err, exception.ErrNotFound)

	other := schema.StratBrief{
		PairStratID:   8,
		BuySideBrief:  schema.PairSideTradingBrief{Security: schema.Security{SecID: "EQT_Sec_1"}, Side: schema.SideBuy},
		SellSideBrief: schema.PairSideTradingBrief{Security: schema.Security{SecID: "CB_Sec_2"}, Side: schema.SideSell},
	}
	_, err = s.StratBriefs.Create(ctx, other)
	require.NoError(t, err)

	_, err = s.StratBriefs.GetBySymbol(ctx, "EQT_Sec_1")
	assert.ErrorIs(t, err, exception.ErrMultipleMatches)

	require.NoError(t, s.StratBriefs.Delete(ctx, 8))
	_, err = s.StratBriefs.GetByStratID(ctx, 8)
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestPairStratStoreOngoing(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	ps := schema.PairStrat{
		Params: schema.PairStratParams{
			Leg1: schema.StratLeg{Sec: schema.Security{SecID: "CB_Sec_1"}, Side: schema.SideBuy},
			Leg2: schema.StratLeg{Sec: schema.Security{SecID: "EQT_Sec_1"}, Side: schema.SideSell},
		},
		StratStatus: schema.StratStatus{StratState: schema.StratStateReady},
	}
	created, err := s.PairStrats.Create(ctx, ps)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = s.PairStrats.FindOngoingBySymbolSide(ctx, "CB_Sec_1", schema.SideBuy)
	assert.ErrorIs(t, err, exception.ErrNotFound, "READY is not ongoing")

	_, err = s.PairStrats.Update(ctx, created.ID, func(p *schema.PairStrat) error {
		p.StratStatus.StratState = schema.StratStateActive
		return nil
	})
	require.NoError(t, err)

	found, err := s.PairStrats.FindOngoingBySymbolSide(ctx, "CB_Sec_1", schema.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = s.PairStrats.FindOngoingBySymbolSide(ctx, "CB_Sec_1", schema.SideSell)
	assert.ErrorIs(t, err, exception.ErrNotFound, "leg side must match")

	ongoing, err := s.PairStrats.ListOngoing(ctx)
	require.NoError(t, err)
	assert.Len(t, ongoing, 1)
}

func TestPairStratStoreKeepsExplicitID(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	created, err := s.PairStrats.Create(ctx, schema.PairStrat{ID: 42})
	require.NoError(t, err)
	assert.EqualValues(t, 42, created.ID)

	_, err = s.PairStrats.Create(ctx, schema.PairStrat{ID: 42})
	assert.ErrorIs(t, err, exception.ErrDuplicateRecord)

	next, err := s.PairStrats.Create(ctx, schema.PairStrat{})
	require.NoError(t, err)
	assert.EqualValues(t, 43, next.ID)
}

func TestPortfolioStatusStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Portfolio.Get(ctx)
	assert.ErrorIs(t, err, exception.ErrPortfolioStatusGone)

	status, err := s.Portfolio.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.PortfolioStatusID, status.ID)
	assert.False(t, status.KillSwitch)

	updated, err := s.Portfolio.Update(ctx, func(p *schema.PortfolioStatus) error {
		p.KillSwitch = true
		p.OverallBuyNotional = 1000
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.KillSwitch)

	again, err := s.Portfolio.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.True(t, again.KillSwitch, "GetOrCreate must not reset existing state")
}

func TestCancelOrderStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.CancelOrders.Create(ctx, schema.CancelOrder{OrderID: "O-1", Side: schema.SideSell})
	require.NoError(t, err)

	_, err = s.CancelOrders.Create(ctx, schema.CancelOrder{OrderID: "O-1"})
	assert.ErrorIs(t, err, exception.ErrDuplicateRecord)

	updated, err := s.CancelOrders.Update(ctx, "O-1", func(co *schema.CancelOrder) error {
		co.CxlConfirmed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.CxlConfirmed)
}

func TestOrderJournalLastN(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	events := []schema.OrderEventType{
		schema.OrderEventNew,
		schema.OrderEventAck,
		schema.OrderEventCxl,
	}
	for _, ev := range events {
		_, err := s.OrderJournals.Append(ctx, schema.OrderJournal{
			Order:          schema.OrderBrief{OrderID: "O-1"},
			OrderEventType: ev,
		})
		require.NoError(t, err)
	}
	_, err := s.OrderJournals.Append(ctx, schema.OrderJournal{
		Order:          schema.OrderBrief{OrderID: "O-2"},
		OrderEventType: schema.OrderEventNew,
	})
	require.NoError(t, err)

	last, err := s.OrderJournals.LastNByOrderID(ctx, "O-1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, schema.OrderEventCxl, last[0].OrderEventType, "newest first")
	assert.Equal(t, schema.OrderEventAck, last[1].OrderEventType)

	all, err := s.OrderJournals.LastNByOrderID(ctx, "O-1", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	snap := schema.OrderSnapshot{
		OrderBrief: schema.OrderBrief{OrderID: "O-1", Text: []string{"first"}},
	}
	created, err := s.OrderSnapshots.Create(ctx, snap)
	require.NoError(t, err)

	created.OrderBrief.Text[0] = "mutated"
	got, err := s.OrderSnapshots.GetByOrderID(ctx, "O-1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.OrderBrief.Text[0], "callers must not share backing slices")
}
