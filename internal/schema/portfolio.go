package schema

// PortfolioStatusID is the singleton record id.
const PortfolioStatusID int64 = 1

// PortfolioStatus is the global notional aggregate and the kill switch.
type PortfolioStatus struct {
	ID                      int64   `json:"id"`
	KillSwitch              bool    `json:"kill_switch"`
	OverallBuyNotional      float64 `json:"overall_buy_notional"`
	OverallSellNotional     float64 `json:"overall_sell_notional"`
	OverallBuyFillNotional  float64 `json:"overall_buy_fill_notional"`
	OverallSellFillNotional float64 `json:"overall_sell_fill_notional"`
	PortfolioAlerts         []Alert `json:"portfolio_alerts,omitempty"`
	AlertUpdateSeq          int64   `json:"alert_update_seq_num"`
}
