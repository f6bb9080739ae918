package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"simexchange/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testBook() *OrderBook {
	return NewOrderBook("BTCUSDT", zap.NewNop())
}

func restingOrder(id string, side domain.Side, price, qty string) *domain.Order {
	return &domain.Order{
		ID:       id,
		UserID:   "maker",
		Symbol:   "BTCUSDT",
		Side:     side,
		Type:     domain.Limit,
		Price:    dec(price),
		Quantity: dec(qty),
		Status:   domain.StatusNew,
	}
}

func TestAddOrderRefusesMarketOrders(t *testing.T) {
	ob := testBook()
	o := restingOrder("m-1", domain.Buy, "0", "1")
	o.Type = domain.Market
	assert.False(t, ob.AddOrder(o))
	assert.Equal(t, 0, ob.OpenOrders())
}

func TestAddRemoveRestoresBook(t *testing.T) {
	ob := testBook()
	o := restingOrder("o-1", domain.Buy, "100", "1")
	require.True(t, ob.AddOrder(o))

	best, ok := ob.BestBid()
	require.True(t, ok)
	assert.True(t, best.Equal(dec("100")))

	removed := ob.RemoveOrder("o-1")
	require.NotNil(t, removed)
	assert.Equal(t, "o-1", removed.ID)

	// the emptied price level is gone from the sorted view
	_, ok = ob.BestBid()
	assert.False(t, ok)
	assert.Equal(t, 0, ob.OpenOrders())

	assert.Nil(t, ob.RemoveOrder("o-1"))
}

func TestBestPricesPerSide(t *testing.T) {
	ob := testBook()
	ob.AddOrder(restingOrder("b1", domain.Buy, "99", "1"))
	ob.AddOrder(restingOrder("b2", domain.Buy, "101", "1"))
	ob.AddOrder(restingOrder("b3", domain.Buy, "100", "1"))
	ob.AddOrder(restingOrder("s1", domain.Sell, "103", "1"))
	ob.AddOrder(restingOrder("s2", domain.Sell, "102", "1"))

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Equal(dec("101")))

	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Equal(dec("102")))
}

func TestLevelOrdersKeepsArrivalOrder(t *testing.T) {
	ob := testBook()
	ob.AddOrder(restingOrder("first", domain.Sell, "100", "1"))
	ob.AddOrder(restingOrder("second", domain.Sell, "100", "1"))
	ob.AddOrder(restingOrder("third", domain.Sell, "100", "1"))

	level := ob.LevelOrders(domain.Sell, dec("100"))
	require.Len(t, level, 3)
	assert.Equal(t, "first", level[0].ID)
	assert.Equal(t, "second", level[1].ID)
	assert.Equal(t, "third", level[2].ID)

	// the returned slice is a snapshot: mutating it leaves the book intact
	level[0] = nil
	again := ob.LevelOrders(domain.Sell, dec("100"))
	assert.Equal(t, "first", again[0].ID)
}

func TestPriceAtLevel(t *testing.T) {
	ob := testBook()
	ob.AddOrder(restingOrder("s1", domain.Sell, "102", "1"))
	ob.AddOrder(restingOrder("s2", domain.Sell, "101", "1"))
	ob.AddOrder(restingOrder("s3", domain.Sell, "101", "2")) // same level as s2

	p, ok := ob.PriceAtLevel(domain.Sell, 1)
	require.True(t, ok)
	assert.True(t, p.Equal(dec("101")))

	p, ok = ob.PriceAtLevel(domain.Sell, 2)
	require.True(t, ok)
	assert.True(t, p.Equal(dec("102")))

	_, ok = ob.PriceAtLevel(domain.Sell, 3)
	assert.False(t, ok)
}

func TestDepthAggregation(t *testing.T) {
	ob := testBook()
	ob.AddOrder(restingOrder("b1", domain.Buy, "100", "1"))
	ob.AddOrder(restingOrder("b2", domain.Buy, "100", "2"))
	ob.AddOrder(restingOrder("b3", domain.Buy, "99", "5"))
	ob.AddOrder(restingOrder("s1", domain.Sell, "101", "3"))
	ob.AddOrder(restingOrder("s2", domain.Sell, "102", "4"))

	snap := ob.Depth(2)
	require.Len(t, snap.Bids, 2)
	require.Len(t, snap.Asks, 2)
	assert.True(t, snap.Bids[0].Price.Equal(dec("100")))
	assert.True(t, snap.Bids[0].Quantity.Equal(dec("3")))
	assert.True(t, snap.Bids[1].Price.Equal(dec("99")))
	assert.True(t, snap.Asks[0].Price.Equal(dec("101")))
	assert.True(t, snap.Asks[0].Quantity.Equal(dec("3")))

	one := ob.Depth(1)
	assert.Len(t, one.Bids, 1)
	assert.Len(t, one.Asks, 1)
}

func TestDepthUsesRemainingQuantity(t *testing.T) {
	ob := testBook()
	o := restingOrder("b1", domain.Buy, "100", "2")
	o.ExecutedQuantity = dec("0.5")
	ob.AddOrder(o)

	snap := ob.Depth(1)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Quantity.Equal(dec("1.5")))
}

func TestMarketableQuantity(t *testing.T) {
	ob := testBook()
	ob.AddOrder(restingOrder("s1", domain.Sell, "100", "1"))
	ob.AddOrder(restingOrder("s2", domain.Sell, "101", "2"))
	ob.AddOrder(restingOrder("s3", domain.Sell, "105", "10"))

	// unbounded (market taker)
	assert.True(t, ob.MarketableQuantity(domain.Buy, decimal.Zero).Equal(dec("13")))
	// bounded by a buy limit of 101
	assert.True(t, ob.MarketableQuantity(domain.Buy, dec("101")).Equal(dec("3")))
	// nothing marketable below the best ask
	assert.True(t, ob.MarketableQuantity(domain.Buy, dec("99")).IsZero())
}
