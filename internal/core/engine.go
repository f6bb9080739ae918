package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"simexchange/internal/config"
	"simexchange/internal/domain"
	"simexchange/internal/port"
)

// depthLevels is the snapshot depth published through the cache port.
const depthLevels = 20

type TradeListener func(*domain.Trade)
type OrderListener func(*domain.Order, domain.UpdateType)

type clientKey struct {
	userID        string
	clientOrderID string
}

// MatchingEngine owns every order book, the global trade log and the
// history indexes, and runs the matching, self-trade prevention and
// pegged-price algorithms. A single mutex serializes all mutating calls;
// within one call there is no suspension point, so a match always runs to
// completion before cancellation or another placement can observe it.
// Listeners are invoked synchronously on the calling goroutine.
type MatchingEngine struct {
	mu    sync.Mutex
	log   *zap.Logger
	cache port.Cache
	fees  *FeeCalculator

	books     map[string]*OrderBook
	stops     map[string][]*domain.Order
	lastPrice map[string]decimal.Decimal

	trades      []*domain.Trade
	tradeID     int64
	history     map[string]*domain.Order
	userOrders  map[string][]string
	clientIndex map[clientKey]string

	tradeListeners []TradeListener
	orderListeners []OrderListener
}

func NewMatchingEngine(cfg *config.Config, cache port.Cache, log *zap.Logger) *MatchingEngine {
	return &MatchingEngine{
		log:         log,
		cache:       cache,
		fees:        NewFeeCalculator(cfg, log),
		books:       make(map[string]*OrderBook),
		stops:       make(map[string][]*domain.Order),
		lastPrice:   make(map[string]decimal.Decimal),
		history:     make(map[string]*domain.Order),
		userOrders:  make(map[string][]string),
		clientIndex: make(map[clientKey]string),
	}
}

func (e *MatchingEngine) RegisterTradeListener(l TradeListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tradeListeners = append(e.tradeListeners, l)
}

func (e *MatchingEngine) RegisterOrderListener(l OrderListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderListeners = append(e.orderListeners, l)
}

// PlaceOrder runs the full submission pipeline: record, resolve pegged
// price, validate, match, settle the remainder, trigger stops, publish
// depth. It returns the trades generated for this order; rejected orders
// return an empty list after a REJECTED notification, they never raise.
func (e *MatchingEngine) PlaceOrder(ctx context.Context, o *domain.Order) []*domain.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.TimeInForce == "" {
		o.TimeInForce = domain.GTC
	}
	o.TransitionTo(domain.StatusNew, now)

	// every order is retained for audit, rejected ones included
	e.history[o.ID] = o
	e.userOrders[o.UserID] = append(e.userOrders[o.UserID], o.ID)
	if o.ClientOrderID != "" {
		e.clientIndex[clientKey{o.UserID, o.ClientOrderID}] = o.ID
	}

	book := e.book(o.Symbol)

	if o.PriceMatch.Pegged() && o.Price.IsZero() {
		price, err := resolvePriceMatch(book, o.Side, o.PriceMatch)
		if err != nil {
			e.log.Warn("pegged price resolution failed",
				zap.String("order_id", o.ID), zap.Error(err))
			o.TransitionTo(domain.StatusRejected, now)
			e.notifyOrder(o, domain.UpdateRejected)
			return nil
		}
		o.Price = price
	}

	if ok, errs := ValidateOrder(o, now); !ok {
		e.log.Info("order rejected",
			zap.String("order_id", o.ID), zap.Strings("errors", errs))
		e.notifyOrder(o, domain.UpdateRejected)
		return nil
	}

	e.notifyOrder(o, domain.UpdateNew)

	if o.Type == domain.Stop || o.Type == domain.StopLimit {
		o.TransitionTo(domain.StatusPendingTrigger, now)
		e.stops[o.Symbol] = append(e.stops[o.Symbol], o)
		return nil
	}

	if o.TimeInForce == domain.FOK {
		limit := decimal.Zero
		if o.Type != domain.Market {
			limit = o.Price
		}
		if book.MarketableQuantity(o.Side, limit).LessThan(o.Quantity) {
			o.TransitionTo(domain.StatusExpired, now)
			e.notifyOrder(o, domain.UpdateExpired)
			return nil
		}
	}

	trades := e.match(book, o, now)
	e.settleRemainder(book, o, now)
	if o.Status == domain.StatusFilled {
		e.notifyOrder(o, domain.UpdateFilled)
	}
	if len(trades) > 0 {
		e.triggerStops(o.Symbol, now)
	}
	e.publishDepth(ctx, book)
	return trades
}

// CancelOrder resolves through the engine-wide history, delists the order
// if it is resting or pending trigger, and cancels it. Unknown ids, symbol
// mismatches and already-terminal orders return false, so cancellation is
// idempotent.
func (e *MatchingEngine) CancelOrder(ctx context.Context, orderID, symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.history[orderID]
	if !ok {
		return false
	}
	if symbol != "" && symbol != o.Symbol {
		return false
	}
	if book, ok := e.books[o.Symbol]; ok {
		book.RemoveOrder(orderID)
	}
	e.removeStop(o)
	if !o.Cancel(time.Now()) {
		return false
	}
	e.notifyOrder(o, domain.UpdateCanceled)
	if book, ok := e.books[o.Symbol]; ok {
		e.publishDepth(ctx, book)
	}
	return true
}

// match runs the matching loop against the opposite side of the book,
// best price first, FIFO within a level. The level is iterated from a
// snapshot because fills and removals mutate the live structure.
func (e *MatchingEngine) match(book *OrderBook, taker *domain.Order, now time.Time) []*domain.Trade {
	var trades []*domain.Trade
	for e.takerWants(taker) && !taker.IsTerminal() {
		best, ok := bestOpposing(book, taker.Side)
		if !ok {
			break
		}
		if taker.Price.IsPositive() {
			if taker.Side == domain.Buy && best.GreaterThan(taker.Price) {
				break
			}
			if taker.Side == domain.Sell && best.LessThan(taker.Price) {
				break
			}
		}

		before := len(trades)
		for _, maker := range book.LevelOrders(opposite(taker.Side), best) {
			if !e.takerWants(taker) || taker.IsTerminal() {
				break
			}
			if maker.IsTerminal() {
				continue
			}
			if maker.UserID == taker.UserID && e.preventSelfTrade(book, taker, maker, now) {
				continue
			}
			qty := decimal.Min(e.takerRemaining(taker, best), maker.RemainingQuantity())
			if !qty.IsPositive() {
				continue
			}
			trades = append(trades, e.execute(book, taker, maker, best, qty, now)...)
		}

		// safety valve: a pass over a level yielding no trades while the
		// best price is unchanged must not loop forever
		if len(trades) == before {
			if newBest, ok := bestOpposing(book, taker.Side); ok && newBest.Equal(best) {
				e.log.Warn("matching pass produced no trades at unchanged best price",
					zap.String("symbol", book.Symbol()),
					zap.String("order_id", taker.ID),
					zap.String("price", best.String()))
				break
			}
		}
	}
	return trades
}

// execute applies one fill to both orders and emits the taker+maker trade
// pair with consecutive ids.
func (e *MatchingEngine) execute(book *OrderBook, taker, maker *domain.Order, price, qty decimal.Decimal, now time.Time) []*domain.Trade {
	takerFee, takerAsset := e.fees.Commission(taker.Symbol, taker.Side, qty, price, false)
	makerFee, makerAsset := e.fees.Commission(maker.Symbol, maker.Side, qty, price, true)
	e.checkCommissionAsset(taker, takerAsset)
	e.checkCommissionAsset(maker, makerAsset)

	taker.AddFill(qty, price, now, takerFee, takerAsset, false)
	maker.AddFill(qty, price, now, makerFee, makerAsset, true)

	quoteQty := price.Mul(qty)
	takerTrade := &domain.Trade{
		ID:              e.nextTradeID(),
		OrderID:         taker.ID,
		Symbol:          taker.Symbol,
		Price:           price,
		Quantity:        qty,
		QuoteQty:        quoteQty,
		Side:            taker.Side,
		Commission:      takerFee,
		CommissionAsset: takerAsset,
		IsMaker:         false,
		Timestamp:       now,
	}
	makerTrade := &domain.Trade{
		ID:              e.nextTradeID(),
		OrderID:         maker.ID,
		Symbol:          maker.Symbol,
		Price:           price,
		Quantity:        qty,
		QuoteQty:        quoteQty,
		Side:            maker.Side,
		Commission:      makerFee,
		CommissionAsset: makerAsset,
		IsMaker:         true,
		Timestamp:       now,
	}
	e.trades = append(e.trades, takerTrade, makerTrade)
	e.lastPrice[taker.Symbol] = price
	e.notifyTrade(takerTrade)
	e.notifyTrade(makerTrade)

	if maker.Status == domain.StatusFilled {
		book.RemoveOrder(maker.ID)
		e.notifyOrder(maker, domain.UpdateFilled)
	} else {
		e.notifyOrder(maker, domain.UpdatePartiallyFilled)
	}
	return []*domain.Trade{takerTrade, makerTrade}
}

var knownSTPModes = map[domain.STPMode]bool{
	domain.STPNone:        true,
	domain.STPExpireTaker: true,
	domain.STPExpireMaker: true,
	domain.STPExpireBoth:  true,
}

// preventSelfTrade resolves a same-user pairing. It returns true when the
// pairing is vetoed; the configured action is then fully applied to both
// orders before returning. An unrecognized mode on either side falls back
// to allowing the trade, logged as a policy, not swallowed.
func (e *MatchingEngine) preventSelfTrade(book *OrderBook, taker, maker *domain.Order, now time.Time) bool {
	takerMode := normalizeSTP(taker.STP)
	makerMode := normalizeSTP(maker.STP)
	if !knownSTPModes[takerMode] || !knownSTPModes[makerMode] {
		e.log.Warn("unrecognized self-trade prevention mode, allowing trade",
			zap.String("taker_mode", string(taker.STP)),
			zap.String("maker_mode", string(maker.STP)))
		return false
	}
	if takerMode == domain.STPNone || makerMode == domain.STPNone {
		return false
	}
	switch takerMode {
	case domain.STPExpireTaker:
		taker.TransitionTo(domain.StatusExpiredInMatch, now)
		e.notifyOrder(taker, domain.UpdateExpiredInMatch)
	case domain.STPExpireMaker:
		maker.TransitionTo(domain.StatusExpiredInMatch, now)
		book.RemoveOrder(maker.ID)
		e.notifyOrder(maker, domain.UpdateExpiredInMatch)
	case domain.STPExpireBoth:
		maker.TransitionTo(domain.StatusExpiredInMatch, now)
		book.RemoveOrder(maker.ID)
		e.notifyOrder(maker, domain.UpdateExpiredInMatch)
		taker.TransitionTo(domain.StatusExpiredInMatch, now)
		e.notifyOrder(taker, domain.UpdateExpiredInMatch)
	}
	return true
}

func normalizeSTP(m domain.STPMode) domain.STPMode {
	if m == "" {
		return domain.STPNone
	}
	return domain.STPMode(strings.ToUpper(string(m)))
}

// settleRemainder decides what happens to unfilled quantity after the
// matching loop. Market-like orders never rest: a quote-quantity remainder
// expires with notification (liquidity exhausted), a base-quantity
// remainder is dropped and only logged. IOC remainders expire; everything
// else rests on the book.
func (e *MatchingEngine) settleRemainder(book *OrderBook, o *domain.Order, now time.Time) {
	if o.IsTerminal() || !e.takerWants(o) {
		return
	}
	marketLike := o.Type == domain.Market || o.Type == domain.Stop
	switch {
	case marketLike && o.QuoteSized():
		o.TransitionTo(domain.StatusExpired, now)
		e.notifyOrder(o, domain.UpdateExpired)
	case marketLike:
		e.log.Info("market order remainder dropped, liquidity exhausted",
			zap.String("order_id", o.ID),
			zap.String("remaining", o.RemainingQuantity().String()))
	case o.TimeInForce == domain.IOC:
		o.TransitionTo(domain.StatusExpired, now)
		e.notifyOrder(o, domain.UpdateExpired)
	default:
		if book.AddOrder(o) && o.ActivatedAt.IsZero() {
			o.ActivatedAt = now
		}
	}
}

// triggerStops replays the symbol's last trade price against the pending
// stop queue until no stop crosses. Each triggered stop matches inside
// this call; its trades can move the last price and trigger further stops.
func (e *MatchingEngine) triggerStops(symbol string, now time.Time) {
	book := e.book(symbol)
	for {
		last, ok := e.lastPrice[symbol]
		if !ok {
			return
		}
		queue := e.stops[symbol]
		idx := -1
		for i, s := range queue {
			if s.IsTerminal() {
				continue
			}
			if (s.Side == domain.Buy && last.GreaterThanOrEqual(s.StopPrice)) ||
				(s.Side == domain.Sell && last.LessThanOrEqual(s.StopPrice)) {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		s := queue[idx]
		e.stops[symbol] = append(queue[:idx], queue[idx+1:]...)
		s.TransitionTo(domain.StatusTriggered, now)
		e.log.Info("stop order triggered",
			zap.String("order_id", s.ID),
			zap.String("last_price", last.String()))
		e.match(book, s, now)
		e.settleRemainder(book, s, now)
		if s.Status == domain.StatusFilled {
			e.notifyOrder(s, domain.UpdateFilled)
		}
	}
}

func (e *MatchingEngine) takerWants(o *domain.Order) bool {
	if o.QuoteSized() {
		return o.RemainingQuoteQty().IsPositive()
	}
	return o.RemainingQuantity().IsPositive()
}

func (e *MatchingEngine) takerRemaining(o *domain.Order, price decimal.Decimal) decimal.Decimal {
	if o.QuoteSized() {
		rq := o.RemainingQuoteQty()
		if !rq.IsPositive() {
			return decimal.Zero
		}
		return rq.Div(price)
	}
	return o.RemainingQuantity()
}

func (e *MatchingEngine) checkCommissionAsset(o *domain.Order, asset string) {
	if o.CommissionAsset != "" && asset != "" && o.CommissionAsset != asset {
		e.log.Warn("commission asset differs from earlier fills",
			zap.String("order_id", o.ID),
			zap.String("have", o.CommissionAsset),
			zap.String("new", asset))
	}
}

func bestOpposing(book *OrderBook, takerSide domain.Side) (decimal.Decimal, bool) {
	if takerSide == domain.Buy {
		return book.BestAsk()
	}
	return book.BestBid()
}

func (e *MatchingEngine) nextTradeID() int64 {
	e.tradeID++
	return e.tradeID
}

// book returns the symbol's order book, creating it lazily. Caller must
// hold the engine mutex.
func (e *MatchingEngine) book(symbol string) *OrderBook {
	ob, ok := e.books[symbol]
	if !ok {
		ob = NewOrderBook(symbol, e.log)
		e.books[symbol] = ob
	}
	return ob
}

func (e *MatchingEngine) removeStop(o *domain.Order) {
	queue := e.stops[o.Symbol]
	for i, s := range queue {
		if s.ID == o.ID {
			e.stops[o.Symbol] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

func (e *MatchingEngine) publishDepth(ctx context.Context, book *OrderBook) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetDepth(ctx, book.Symbol(), book.Depth(depthLevels)); err != nil {
		e.log.Warn("depth snapshot publish failed",
			zap.String("symbol", book.Symbol()), zap.Error(err))
	}
}

func (e *MatchingEngine) notifyTrade(t *domain.Trade) {
	for _, l := range e.tradeListeners {
		e.safeNotify(func() { l(t) })
	}
}

func (e *MatchingEngine) notifyOrder(o *domain.Order, u domain.UpdateType) {
	for _, l := range e.orderListeners {
		e.safeNotify(func() { l(o, u) })
	}
}

// safeNotify isolates listener faults: a panic in one listener is logged
// and neither aborts the remaining listeners nor unwinds the match.
func (e *MatchingEngine) safeNotify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("listener panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// GetOrder resolves through the history index, so the status is accurate
// whether the order is resting, filled or canceled.
func (e *MatchingEngine) GetOrder(orderID string) (*domain.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.history[orderID]
	return o, ok
}

func (e *MatchingEngine) GetOrderByClientID(userID, clientOrderID string) (*domain.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.clientIndex[clientKey{userID, clientOrderID}]
	if !ok {
		return nil, false
	}
	o, ok := e.history[id]
	return o, ok
}

func (e *MatchingEngine) UserOrders(userID string) []*domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.userOrders[userID]
	out := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := e.history[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// GetOrderBook returns the symbol's book, creating it lazily. Books are
// never removed once created.
func (e *MatchingEngine) GetOrderBook(symbol string) *OrderBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book(symbol)
}

func (e *MatchingEngine) Depth(symbol string, levels int) *domain.DepthSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book(symbol).Depth(levels)
}

// Trades returns the most recent entries of the global trade log, oldest
// first. limit <= 0 returns the whole log.
func (e *MatchingEngine) Trades(limit int) []*domain.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.trades)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*domain.Trade, n)
	copy(out, e.trades[len(e.trades)-n:])
	return out
}
