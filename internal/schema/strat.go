package schema

import (
	"time"

	"github.com/google/uuid"
)

// StratLeg binds one side of a pair strat to a security.
type StratLeg struct {
	Sec  Security `json:"sec"`
	Side Side     `json:"side"`
}

// PairStratParams is the operator-owned strategy definition.
type PairStratParams struct {
	Leg1 StratLeg `json:"strat_leg1"`
	Leg2 StratLeg `json:"strat_leg2"`
}

// CancelRate caps cancelled quantity as a percentage of total traded
// quantity once the order count passes the waiver threshold.
type CancelRate struct {
	MaxCancelRate           int64 `json:"max_cancel_rate"`
	ApplicablePeriodSeconds int64 `json:"applicable_period_seconds"`
	WaivedMinOrders         int64 `json:"waived_min_orders"`
}

// MarketTradeVolumeParticipation caps order flow against rolling market volume.
type MarketTradeVolumeParticipation struct {
	MaxParticipationRate    float64 `json:"max_participation_rate"`
	ApplicablePeriodSeconds int64   `json:"applicable_period_seconds"`
}

// ResidualRestriction caps the unhedged notional between the two legs.
type ResidualRestriction struct {
	MaxResidual         float64 `json:"max_residual"`
	ResidualMarkSeconds int64   `json:"residual_mark_seconds"`
}

// StratLimits is the risk configuration of one pair strat.
type StratLimits struct {
	MaxOpenOrdersPerSide int64                          `json:"max_open_orders_per_side"`
	MaxCbNotional        float64                        `json:"max_cb_notional"`
	MaxOpenCbNotional    float64                        `json:"max_open_cb_notional"`
	MaxConcentration     float64                        `json:"max_concentration"`
	CancelRate           CancelRate                     `json:"cancel_rate"`
	MarketParticipation  MarketTradeVolumeParticipation `json:"market_trade_volume_participation"`
	ResidualRestriction  ResidualRestriction            `json:"residual_restriction"`
}

// Alert is a user-visible notice attached to strat or portfolio status.
type Alert struct {
	ID             string    `json:"id"`
	Severity       Severity  `json:"severity"`
	AlertBrief     string    `json:"alert_brief"`
	AlertDetails   string    `json:"alert_details,omitempty"`
	LastUpdateTime time.Time `json:"last_update_date_time"`
}

// NewAlert builds an alert with a fresh id.
func NewAlert(severity Severity, brief, details string) Alert {
	return Alert{
		ID:             uuid.NewString(),
		Severity:       severity,
		AlertBrief:     brief,
		AlertDetails:   details,
		LastUpdateTime: time.Now().UTC(),
	}
}

// Residual is the notional imbalance between the two legs' unexecuted
// exposure, attributed to the heavier security.
type Residual struct {
	Security         Security `json:"security"`
	ResidualNotional float64  `json:"residual_notional"`
}

// StratStatus carries the running totals owned by the reconciliation engine.
type StratStatus struct {
	StratState StratState `json:"strat_state"`

	TotalBuyQty   int64 `json:"total_buy_qty"`
	TotalSellQty  int64 `json:"total_sell_qty"`
	TotalOrderQty int64 `json:"total_order_qty"`

	TotalOpenBuyQty       int64   `json:"total_open_buy_qty"`
	TotalOpenSellQty      int64   `json:"total_open_sell_qty"`
	AvgOpenBuyPx          float64 `json:"avg_open_buy_px"`
	AvgOpenSellPx         float64 `json:"avg_open_sell_px"`
	TotalOpenBuyNotional  float64 `json:"total_open_buy_notional"`
	TotalOpenSellNotional float64 `json:"total_open_sell_notional"`
	TotalOpenExposure     float64 `json:"total_open_exposure"`

	TotalFillBuyQty       int64   `json:"total_fill_buy_qty"`
	TotalFillSellQty      int64   `json:"total_fill_sell_qty"`
	AvgFillBuyPx          float64 `json:"avg_fill_buy_px"`
	AvgFillSellPx         float64 `json:"avg_fill_sell_px"`
	TotalFillBuyNotional  float64 `json:"total_fill_buy_notional"`
	TotalFillSellNotional float64 `json:"total_fill_sell_notional"`
	TotalFillExposure     float64 `json:"total_fill_exposure"`

	TotalCxlBuyQty       int64   `json:"total_cxl_buy_qty"`
	TotalCxlSellQty      int64   `json:"total_cxl_sell_qty"`
	AvgCxlBuyPx          float64 `json:"avg_cxl_buy_px"`
	AvgCxlSellPx         float64 `json:"avg_cxl_sell_px"`
	TotalCxlBuyNotional  float64 `json:"total_cxl_buy_notional"`
	TotalCxlSellNotional float64 `json:"total_cxl_sell_notional"`
	TotalCxlExposure     float64 `json:"total_cxl_exposure"`

	Residual        Residual `json:"residual"`
	BalanceNotional float64  `json:"balance_notional"`
	StratAlerts     []Alert  `json:"strat_alerts,omitempty"`
}

// PairStrat is the strategy record: definition, limits, and running status.
type PairStrat struct {
	ID             int64           `json:"id"`
	Params         PairStratParams `json:"pair_strat_params"`
	StratLimits    StratLimits     `json:"strat_limits"`
	StratStatus    StratStatus     `json:"strat_status"`
	Host           string          `json:"host,omitempty"`
	Port           int             `json:"port,omitempty"`
	Frequency      int64           `json:"frequency"`
	LastActiveTime time.Time       `json:"last_active_date_time"`
}

// LegFor returns the leg matching the (symbol, side) pair.
func (p *PairStrat) LegFor(secID string, side Side) (StratLeg, bool) {
	if p.Params.Leg1.Sec.SecID == secID && p.Params.Leg1.Side == side {
		return p.Params.Leg1, true
	}
	if p.Params.Leg2.Sec.SecID == secID && p.Params.Leg2.Side == side {
		return p.Params.Leg2, true
	}
	return StratLeg{}, false
}

// OtherLeg returns the leg opposite to the given security.
func (p *PairStrat) OtherLeg(secID string) StratLeg {
	if p.Params.Leg1.Sec.SecID == secID {
		return p.Params.Leg2
	}
	return p.Params.Leg1
}

// PairSideTradingBrief is the consumable-limit view of one leg.
type PairSideTradingBrief struct {
	Security       Security  `json:"security"`
	Side           Side      `json:"side"`
	LastUpdateTime time.Time `json:"last_update_date_time"`

	ConsumableOpenOrders                 int64   `json:"consumable_open_orders"`
	ConsumableNotional                   float64 `json:"consumable_notional"`
	ConsumableOpenNotional               float64 `json:"consumable_open_notional"`
	ConsumableConcentration              float64 `json:"consumable_concentration"`
	ParticipationPeriodOrderQtySum       int64   `json:"participation_period_order_qty_sum"`
	ConsumableCxlQty                     float64 `json:"consumable_cxl_qty"`
	IndicativeConsumableParticipationQty int64   `json:"indicative_consumable_participation_qty"`
	ResidualQty                          int64   `json:"residual_qty"`
	IndicativeConsumableResidual         float64 `json:"indicative_consumable_residual"`
	AllBkrCxlledQty                      int64   `json:"all_bkr_cxlled_qty"`
	OpenNotional                         float64 `json:"open_notional"`
	OpenQty                              int64   `json:"open_qty"`
}

// StratBrief pairs the two legs' trading briefs for one strategy.
type StratBrief struct {
	ID             int64                `json:"id"`
	PairStratID    int64                `json:"pair_strat_id"`
	BuySideBrief   PairSideTradingBrief `json:"pair_buy_side_trading_brief"`
	SellSideBrief  PairSideTradingBrief `json:"pair_sell_side_trading_brief"`
	LastUpdateTime time.Time            `json:"last_update_date_time"`
}

// BriefFor returns the side brief for the given side.
func (b *StratBrief) BriefFor(side Side) *PairSideTradingBrief {
	if side == SideSell {
		return &b.SellSideBrief
	}
	return &b.BuySideBrief
}
