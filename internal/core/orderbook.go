package core

import (
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"simexchange/internal/domain"
)

// priceLevel is one price bucket of the book. Orders keep arrival order,
// which is the time-priority order for matching.
type priceLevel struct {
	price  decimal.Decimal
	orders []*domain.Order
}

// OrderBook is the per-symbol resting-order index: one btree of price
// levels per side (bids iterate best-first descending, asks best-first
// ascending) plus an id map for O(1) lookup and removal. A price exists in
// a tree iff its level holds at least one order.
type OrderBook struct {
	symbol string
	bids   *btree.BTreeG[*priceLevel]
	asks   *btree.BTreeG[*priceLevel]
	orders map[string]*domain.Order
	log    *zap.Logger
}

func NewOrderBook(symbol string, log *zap.Logger) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids: btree.NewG(32, func(a, b *priceLevel) bool {
			return a.price.GreaterThan(b.price)
		}),
		asks: btree.NewG(32, func(a, b *priceLevel) bool {
			return a.price.LessThan(b.price)
		}),
		orders: make(map[string]*domain.Order),
		log:    log,
	}
}

func (ob *OrderBook) Symbol() string { return ob.symbol }

func (ob *OrderBook) tree(side domain.Side) *btree.BTreeG[*priceLevel] {
	if side == domain.Buy {
		return ob.bids
	}
	return ob.asks
}

// AddOrder rests an order at its price level, creating the level if it is
// new. Market orders are never rested; the attempt is logged and refused.
func (ob *OrderBook) AddOrder(o *domain.Order) bool {
	if o.Type == domain.Market {
		ob.log.Warn("refusing to rest market order",
			zap.String("symbol", ob.symbol),
			zap.String("order_id", o.ID))
		return false
	}
	tree := ob.tree(o.Side)
	lvl, ok := tree.Get(&priceLevel{price: o.Price})
	if !ok {
		lvl = &priceLevel{price: o.Price}
		tree.ReplaceOrInsert(lvl)
	}
	lvl.orders = append(lvl.orders, o)
	ob.orders[o.ID] = o
	return true
}

// RemoveOrder delists an order. An emptied level is deleted from its tree
// so the price disappears from the sorted view. Returns nil when the order
// is not resting here.
func (ob *OrderBook) RemoveOrder(orderID string) *domain.Order {
	o, ok := ob.orders[orderID]
	if !ok {
		return nil
	}
	delete(ob.orders, orderID)
	tree := ob.tree(o.Side)
	if lvl, ok := tree.Get(&priceLevel{price: o.Price}); ok {
		for i, r := range lvl.orders {
			if r.ID == orderID {
				lvl.orders = append(lvl.orders[:i], lvl.orders[i+1:]...)
				break
			}
		}
		if len(lvl.orders) == 0 {
			tree.Delete(lvl)
		}
	}
	return o
}

func (ob *OrderBook) Order(orderID string) (*domain.Order, bool) {
	o, ok := ob.orders[orderID]
	return o, ok
}

func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	lvl, ok := ob.bids.Min()
	if !ok {
		return decimal.Decimal{}, false
	}
	return lvl.price, true
}

func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	lvl, ok := ob.asks.Min()
	if !ok {
		return decimal.Decimal{}, false
	}
	return lvl.price, true
}

// PriceAtLevel returns the n-th (1-based) distinct price on a side,
// best-first. Used by pegged-price resolution.
func (ob *OrderBook) PriceAtLevel(side domain.Side, n int) (decimal.Decimal, bool) {
	var price decimal.Decimal
	found := false
	i := 0
	ob.tree(side).Ascend(func(lvl *priceLevel) bool {
		i++
		if i == n {
			price = lvl.price
			found = true
			return false
		}
		return true
	})
	return price, found
}

// LevelOrders returns a copy of the resting orders at an exact price, in
// arrival order. The matching loop iterates the copy because fills and
// removals mutate the live level.
func (ob *OrderBook) LevelOrders(side domain.Side, price decimal.Decimal) []*domain.Order {
	lvl, ok := ob.tree(side).Get(&priceLevel{price: price})
	if !ok {
		return nil
	}
	out := make([]*domain.Order, len(lvl.orders))
	copy(out, lvl.orders)
	return out
}

// MarketableQuantity sums the remaining quantity a taker on takerSide could
// execute against, bounded by limit when limit is positive. Used for FOK
// pre-checks.
func (ob *OrderBook) MarketableQuantity(takerSide domain.Side, limit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	opposite := domain.Sell
	if takerSide == domain.Sell {
		opposite = domain.Buy
	}
	ob.tree(opposite).Ascend(func(lvl *priceLevel) bool {
		if limit.IsPositive() {
			if takerSide == domain.Buy && lvl.price.GreaterThan(limit) {
				return false
			}
			if takerSide == domain.Sell && lvl.price.LessThan(limit) {
				return false
			}
		}
		for _, o := range lvl.orders {
			total = total.Add(o.RemainingQuantity())
		}
		return true
	})
	return total
}

// Depth aggregates remaining quantity for the first levels distinct prices
// per side, best price first.
func (ob *OrderBook) Depth(levels int) *domain.DepthSnapshot {
	snap := &domain.DepthSnapshot{
		Symbol:    ob.symbol,
		Bids:      make([]domain.PriceLevel, 0, levels),
		Asks:      make([]domain.PriceLevel, 0, levels),
		Timestamp: time.Now(),
	}
	collect := func(tree *btree.BTreeG[*priceLevel], out *[]domain.PriceLevel) {
		count := 0
		tree.Ascend(func(lvl *priceLevel) bool {
			if count >= levels {
				return false
			}
			qty := decimal.Zero
			for _, o := range lvl.orders {
				qty = qty.Add(o.RemainingQuantity())
			}
			*out = append(*out, domain.PriceLevel{Price: lvl.price, Quantity: qty})
			count++
			return true
		})
	}
	collect(ob.bids, &snap.Bids)
	collect(ob.asks, &snap.Asks)
	return snap
}

// OpenOrders reports how many orders are resting.
func (ob *OrderBook) OpenOrders() int { return len(ob.orders) }
