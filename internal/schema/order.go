package schema

import "time"

// Security identifies a tradable instrument.
type Security struct {
	SecID string `json:"sec_id"`
}

// OrderBrief carries the immutable request facts of one order.
// Text accumulates reject/cancel annotations over the order's life.
type OrderBrief struct {
	OrderID           string   `json:"order_id"`
	Security          Security `json:"security"`
	Side              Side     `json:"side"`
	Px                float64  `json:"px"`
	Qty               int64    `json:"qty"`
	OrderNotional     float64  `json:"order_notional"`
	PendingAmendQty   int64    `json:"pending_amend_qty,omitempty"`
	PendingAmendPx    float64  `json:"pending_amend_px,omitempty"`
	UnderlyingAccount string   `json:"underlying_account"`
	Text              []string `json:"text,omitempty"`
}

// OrderJournal is one entry of the append-only order lifecycle stream.
type OrderJournal struct {
	ID             int64          `json:"id"`
	Order          OrderBrief     `json:"order"`
	OrderEventType OrderEventType `json:"order_event"`
	EventTime      time.Time      `json:"order_event_date_time"`
}

// FillJournal is one entry of the append-only execution stream.
type FillJournal struct {
	ID                int64     `json:"id"`
	OrderID           string    `json:"order_id"`
	FillPx            float64   `json:"fill_px"`
	FillQty           int64     `json:"fill_qty"`
	FillNotional      float64   `json:"fill_notional"`
	FillSymbol        string    `json:"fill_symbol"`
	FillSide          Side      `json:"fill_side"`
	UnderlyingAccount string    `json:"underlying_account"`
	FillID            string    `json:"fill_id"`
	FillTime          time.Time `json:"fill_date_time"`
}

// OrderSnapshot is the mutable projection of one order's lifecycle.
// One-to-one with an order id.
type OrderSnapshot struct {
	ID                int64       `json:"id"`
	OrderBrief        OrderBrief  `json:"order_brief"`
	FilledQty         int64       `json:"filled_qty"`
	AvgFillPx         float64     `json:"avg_fill_px"`
	FillNotional      float64     `json:"fill_notional"`
	CxledQty          int64       `json:"cxled_qty"`
	AvgCxledPx        float64     `json:"avg_cxled_px"`
	CxledNotional     float64     `json:"cxled_notional"`
	LastUpdateFillQty int64       `json:"last_update_fill_qty"`
	LastUpdateFillPx  float64     `json:"last_update_fill_px"`
	OrderStatus       OrderStatus `json:"order_status"`
	CreateTime        time.Time   `json:"create_date_time"`
	LastUpdateTime    time.Time   `json:"last_update_date_time"`
}

// SymbolSideSnapshot aggregates order activity per (security, side).
// At most one record exists per pair.
type SymbolSideSnapshot struct {
	ID                 int64     `json:"id"`
	Security           Security  `json:"security"`
	Side               Side      `json:"side"`
	AvgPx              float64   `json:"avg_px"`
	TotalQty           int64     `json:"total_qty"`
	TotalFilledQty     int64     `json:"total_filled_qty"`
	AvgFillPx          float64   `json:"avg_fill_px"`
	TotalFillNotional  float64   `json:"total_fill_notional"`
	LastUpdateFillQty  int64     `json:"last_update_fill_qty"`
	LastUpdateFillPx   float64   `json:"last_update_fill_px"`
	TotalCxledQty      int64     `json:"total_cxled_qty"`
	AvgCxledPx         float64   `json:"avg_cxled_px"`
	TotalCxledNotional float64   `json:"total_cxled_notional"`
	OrderCount         int64     `json:"order_count"`
	LastUpdateTime     time.Time `json:"last_update_date_time"`
}

// CancelOrder represents a pending or confirmed cancel request for one order.
type CancelOrder struct {
	ID           int64    `json:"id"`
	OrderID      string   `json:"order_id"`
	Security     Security `json:"security"`
	Side         Side     `json:"side"`
	CxlConfirmed bool     `json:"cxl_confirmed"`
}
