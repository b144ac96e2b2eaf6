package md

import (
	"strconv"
	"time"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

// DepthUpdate mirrors the upstream feed payload; numeric fields arrive as
// decimal strings.
type DepthUpdate struct {
	Symbol string               `json:"symbol"`
	Last   decimal.Decimal      `json:"last"`
	Time   int64                `json:"time"`
	Bids   [][2]decimal.Decimal `json:"bids"` // [0]price [1]quantity
	Asks   [][2]decimal.Decimal `json:"asks"` // [0]price [1]quantity
}

// TradeUpdate mirrors the upstream trade print payload.
type TradeUpdate struct {
	Symbol string          `json:"symbol"`
	Px     decimal.Decimal `json:"price"`
	Qty    decimal.Decimal `json:"quantity"`
	Time   int64           `json:"time"`
}

// ApplyDepthUpdate folds a feed depth payload into the cache.
func (c *Cache) ApplyDepthUpdate(u DepthUpdate) error {
	var (
		bidPx, askPx   float64
		bidQty, askQty int64
		err            error
	)
	if len(u.Bids) > 0 {
		if bidPx, err = toFloat(u.Bids[0][0]); err != nil {
			return errors.Wrap(err, "parse bid px")
		}
		if bidQty, err = toQty(u.Bids[0][1]); err != nil {
			return errors.Wrap(err, "parse bid qty")
		}
	}
	if len(u.Asks) > 0 {
		if askPx, err = toFloat(u.Asks[0][0]); err != nil {
			return errors.Wrap(err, "parse ask px")
		}
		if askQty, err = toQty(u.Asks[0][1]); err != nil {
			return errors.Wrap(err, "parse ask qty")
		}
	}
	c.ApplyQuote(u.Symbol, bidPx, bidQty, askPx, askQty)

	last, err := toFloat(u.Last)
	if err != nil {
		return errors.Wrap(err, "parse last px")
	}
	if last > 0 {
		c.ApplyTrade(u.Symbol, last, 0, time.Unix(0, u.Time))
	}
	return nil
}

// ApplyTradeUpdate folds a feed trade print into the cache.
func (c *Cache) ApplyTradeUpdate(u TradeUpdate) error {
	px, err := toFloat(u.Px)
	if err != nil {
		return errors.Wrap(err, "parse trade px")
	}
	qty, err := toQty(u.Qty)
	if err != nil {
		return errors.Wrap(err, "parse trade qty")
	}
	c.ApplyTrade(u.Symbol, px, qty, time.Unix(0, u.Time))
	return nil
}

func toFloat(d decimal.Decimal) (float64, error) {
	s := d.String()
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func toQty(d decimal.Decimal) (int64, error) {
	f, err := toFloat(d)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
