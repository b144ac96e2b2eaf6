package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratmgr/internal/journal"
	"stratmgr/internal/lock"
	"stratmgr/internal/md"
	"stratmgr/internal/pricing"
	"stratmgr/internal/recon"
	"stratmgr/internal/schema"
	"stratmgr/internal/store"
	"stratmgr/pkg/exception"
)

const (
	cbSec  = "CB_Sec_1"
	eqtSec = "EQT_Sec_1"
)

func newEngine(t *testing.T) (*recon.Engine, *store.Store) {
	t.Helper()
	ctx := context.Background()

	reg := schema.NewRegistry()
	require.NoError(t, reg.AddSecurity(schema.SecurityDef{SecID: cbSec, SecurityFloat: 100000, UsdFxRate: 1}))
	require.NoError(t, reg.AddSecurity(schema.SecurityDef{SecID: eqtSec, SecurityFloat: 200000, UsdFxRate: 1}))
	static := pricing.NewStatic(reg)

	books := md.NewCache()
	books.ApplyTrade(cbSec, 100, 10, time.Now().UTC())
	books.ApplyTrade(eqtSec, 50, 10, time.Now().UTC())

	s := store.NewMemory()
	ps, err := s.PairStrats.Create(ctx, schema.PairStrat{
		Params: schema.PairStratParams{
			Leg1: schema.StratLeg{Sec: schema.Security{SecID: cbSec}, Side: schema.SideBuy},
			Leg2: schema.StratLeg{Sec: schema.Security{SecID: eqtSec}, Side: schema.SideSell},
		},
		StratLimits: schema.StratLimits{
			MaxOpenOrdersPerSide: 10,
			MaxCbNotional:        1_000_000,
			MaxOpenCbNotional:    1_000_000,
			MaxConcentration:     10,
			CancelRate:           schema.CancelRate{MaxCancelRate: 50, ApplicablePeriodSeconds: 60, WaivedMinOrders: 5},
			MarketParticipation:  schema.MarketTradeVolumeParticipation{MaxParticipationRate: 40, ApplicablePeriodSeconds: 60},
			ResidualRestriction:  schema.ResidualRestriction{MaxResidual: 100_000, ResidualMarkSeconds: 60},
		},
		StratStatus: schema.StratStatus{StratState: schema.StratStateActive},
	})
	require.NoError(t, err)
	_, err = s.StratBriefs.Create(ctx, schema.StratBrief{
		PairStratID:   ps.ID,
		BuySideBrief:  schema.PairSideTradingBrief{Security: schema.Security{SecID: cbSec}, Side: schema.SideBuy},
		SellSideBrief: schema.PairSideTradingBrief{Security: schema.Security{SecID: eqtSec}, Side: schema.SideSell},
	})
	require.NoError(t, err)

	engine := recon.New(s, books, books, static, static, lock.NewMemory())
	engine.SetReady(true)
	return engine, s
}

func writeJournal(t *testing.T, dir string, orders []schema.OrderJournal, fills []schema.FillJournal) {
	t.Helper()
	cfg := journal.DefaultConfig(dir)
	w, err := journal.NewWriter(cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for _, oj := range orders {
		require.NoError(t, w.AppendOrder(oj))
	}
	for _, fj := range fills {
		require.NoError(t, w.AppendFill(fj))
	}
	require.NoError(t, w.Close())
}

func orderEvent(event schema.OrderEventType, orderID string, qty int64, px float64) schema.OrderJournal {
	return schema.OrderJournal{
		Order: schema.OrderBrief{
			OrderID:  orderID,
			Security: schema.Security{SecID: cbSec},
			Side:     schema.SideBuy,
			Px:       px,
			Qty:      qty,
		},
		OrderEventType: event,
		EventTime:      time.Now().UTC(),
	}
}

func TestRecoveryRebuildsState(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir,
		[]schema.OrderJournal{
			orderEvent(schema.OrderEventNew, "O-1", 90, 100),
			orderEvent(schema.OrderEventAck, "O-1", 90, 100),
		},
		[]schema.FillJournal{{
			OrderID:    "O-1",
			FillPx:     100,
			FillQty:    30,
			FillSymbol: cbSec,
			FillSide:   schema.SideBuy,
			FillID:     "F-1",
			FillTime:   time.Now().UTC(),
		}},
	)

	engine, s := newEngine(t)
	result, err := Run(context.Background(), journal.ReplayConfig{Dir: dir}, engine)
	require.NoError(t, err)
	assert.Equal(t, 2, result.OrderEvents)
	assert.Equal(t, 1, result.FillEvents)
	assert.Zero(t, result.Skipped)

	snap, err := s.OrderSnapshots.GetByOrderID(context.Background(), "O-1")
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusAcked, snap.OrderStatus)
	assert.Equal(t, int64(30), snap.FilledQty)

	status, err := s.Portfolio.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(9000), status.OverallBuyNotional)
	assert.Equal(t, float64(3000), status.OverallBuyFillNotional)
}

func TestRecoverySkipsRedeliveredEvents(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir,
		[]schema.OrderJournal{
			orderEvent(schema.OrderEventNew, "O-1", 90, 100),
			orderEvent(schema.OrderEventNew, "O-1", 90, 100),
			orderEvent(schema.OrderEventAck, "O-1", 90, 100),
			orderEvent(schema.OrderEventAck, "O-1", 90, 100),
		}, nil)

	engine, s := newEngine(t)
	result, err := Run(context.Background(), journal.ReplayConfig{Dir: dir}, engine)
	require.NoError(t, err)
	assert.Equal(t, 2, result.OrderEvents)
	assert.Equal(t, 2, result.Skipped)

	snap, err := s.OrderSnapshots.GetByOrderID(context.Background(), "O-1")
	require.NoError(t, err)
	assert.Equal(t, schema.OrderStatusAcked, snap.OrderStatus)

	// The duplicate NEW still landed in the portfolio once only.
	status, err := s.Portfolio.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(9000), status.OverallBuyNotional)
}

func TestRecoveryRefusesReconciledStore(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir,
		[]schema.OrderJournal{
			orderEvent(schema.OrderEventNew, "O-1", 90, 100),
			orderEvent(schema.OrderEventAck, "O-1", 90, 100),
		},
		[]schema.FillJournal{{
			OrderID:    "O-1",
			FillPx:     100,
			FillQty:    30,
			FillSymbol: cbSec,
			FillSide:   schema.SideBuy,
			FillID:     "F-1",
			FillTime:   time.Now().UTC(),
		}},
	)

	engine, s := newEngine(t)
	_, err := Run(context.Background(), journal.ReplayConfig{Dir: dir}, engine)
	require.NoError(t, err)

	// The store now holds reconciled state; replaying the same journal
	// again must refuse instead of re-applying the partial fill.
	_, err = Run(context.Background(), journal.ReplayConfig{Dir: dir}, engine)
	assert.ErrorIs(t, err, exception.ErrStoreNotEmpty)

	snap, err := s.OrderSnapshots.GetByOrderID(context.Background(), "O-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), snap.FilledQty, "partial fill applied once")

	status, err := s.Portfolio.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(3000), status.OverallBuyFillNotional)
}

func TestRecoveryEmptyJournal(t *testing.T) {
	engine, _ := newEngine(t)
	result, err := Run(context.Background(), journal.ReplayConfig{Dir: t.TempDir()}, engine)
	require.NoError(t, err)
	assert.Zero(t, result.OrderEvents)
	assert.Zero(t, result.FillEvents)
}
