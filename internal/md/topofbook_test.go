package md

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratmgr/pkg/exception"
)

func TestTopOfBookMissingSymbol(t *testing.T) {
	c := NewCache()
	_, err := c.TopOfBook("CB_Sec_1")
	assert.ErrorIs(t, err, exception.ErrNoTopOfBook)
}

func TestApplyQuoteAndTrade(t *testing.T) {
	c := NewCache()
	c.ApplyQuote("CB_Sec_1", 99.5, 100, 100.5, 200)
	c.ApplyTrade("CB_Sec_1", 100, 50, time.Now().UTC())

	tob, err := c.TopOfBook("CB_Sec_1")
	require.NoError(t, err)
	assert.Equal(t, 99.5, tob.BidPx)
	assert.Equal(t, int64(100), tob.BidQty)
	assert.Equal(t, 100.5, tob.AskPx)
	assert.Equal(t, float64(100), tob.LastTradePx)
	assert.Equal(t, int64(50), tob.LastTradeQty)
}

func TestTradedQtySinceWindow(t *testing.T) {
	c := NewCache()
	now := time.Now().UTC()
	c.ApplyTrade("CB_Sec_1", 100, 30, now.Add(-2*time.Minute))
	c.ApplyTrade("CB_Sec_1", 101, 20, now.Add(-30*time.Second))
	c.ApplyTrade("CB_Sec_1", 102, 10, now)

	assert.Equal(t, int64(30), c.TradedQtySince("CB_Sec_1", time.Minute))
	assert.Equal(t, int64(60), c.TradedQtySince("CB_Sec_1", time.Hour))
	assert.Zero(t, c.TradedQtySince("EQT_Sec_1", time.Minute))
}

func TestVolumeWindowCompaction(t *testing.T) {
	w := newVolumeWindow()
	old := time.Now().UTC().Add(-2 * time.Hour)
	w.add(100, 10, old)
	w.add(100, 20, time.Now().UTC())

	// Prints past maxAge are dropped on the next add.
	assert.Len(t, w.prints, 1)
	assert.Equal(t, int64(20), w.prints[0].qty)
}

func TestApplyDepthUpdate(t *testing.T) {
	c := NewCache()
	var u DepthUpdate
	payload := fmt.Sprintf(`{
		"symbol": "CB_Sec_1",
		"last": "100.25",
		"time": %d,
		"bids": [["100", "15"]],
		"asks": [["100.5", "25"]]
	}`, time.Now().UTC().UnixNano())
	require.NoError(t, json.Unmarshal([]byte(payload), &u))
	require.NoError(t, c.ApplyDepthUpdate(u))

	tob, err := c.TopOfBook("CB_Sec_1")
	require.NoError(t, err)
	assert.Equal(t, float64(100), tob.BidPx)
	assert.Equal(t, int64(15), tob.BidQty)
	assert.Equal(t, 100.5, tob.AskPx)
	assert.Equal(t, 100.25, tob.LastTradePx)
}

func TestApplyTradeUpdate(t *testing.T) {
	c := NewCache()
	var u TradeUpdate
	payload := fmt.Sprintf(`{
		"symbol": "CB_Sec_1",
		"price": "99.75",
		"quantity": "40",
		"time": %d
	}`, time.Now().UTC().UnixNano())
	require.NoError(t, json.Unmarshal([]byte(payload), &u))
	require.NoError(t, c.ApplyTradeUpdate(u))

	tob, err := c.TopOfBook("CB_Sec_1")
	require.NoError(t, err)
	assert.Equal(t, 99.75, tob.LastTradePx)
	assert.Equal(t, int64(40), tob.LastTradeQty)
	assert.Equal(t, int64(40), c.TradedQtySince("CB_Sec_1", time.Minute))
}
