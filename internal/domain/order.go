package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderType string
type OrderStatus string
type TimeInForce string
type STPMode string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	Market    OrderType = "MARKET"
	Limit     OrderType = "LIMIT"
	Stop      OrderType = "STOP"
	StopLimit OrderType = "STOP_LIMIT"
)

const (
	StatusNew             OrderStatus = "NEW"
	StatusPendingTrigger  OrderStatus = "PENDING_TRIGGER"
	StatusTriggered       OrderStatus = "TRIGGERED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusExpiredInMatch  OrderStatus = "EXPIRED_IN_MATCH"
)

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

const (
	STPNone        STPMode = "NONE"
	STPExpireTaker STPMode = "EXPIRE_TAKER"
	STPExpireMaker STPMode = "EXPIRE_MAKER"
	STPExpireBoth  STPMode = "EXPIRE_BOTH"
)

// PriceMatch is the pegged-pricing mode. Beyond NONE the values are
// OPPONENT[_N] and QUEUE[_N]; the level suffix keeps the set open, so the
// type carries a pegging predicate instead of a closed constant list.
// Values are upper-cased at the wire boundary.
type PriceMatch string

const PriceMatchNone PriceMatch = "NONE"

// Pegged reports whether the mode requests price resolution against the
// book. Empty and NONE are the same thing: no peg.
func (p PriceMatch) Pegged() bool {
	return p != "" && p != PriceMatchNone
}

// UpdateType is the vocabulary passed to order-update listeners.
type UpdateType string

const (
	UpdateNew             UpdateType = "NEW"
	UpdatePartiallyFilled UpdateType = "PARTIALLY_FILLED"
	UpdateFilled          UpdateType = "FILLED"
	UpdateCanceled        UpdateType = "CANCELED"
	UpdateRejected        UpdateType = "REJECTED"
	UpdateExpired         UpdateType = "EXPIRED"
	UpdateExpiredInMatch  UpdateType = "EXPIRED_IN_MATCH"
)

var knownStatuses = map[OrderStatus]bool{
	StatusNew:             true,
	StatusPendingTrigger:  true,
	StatusTriggered:       true,
	StatusPartiallyFilled: true,
	StatusFilled:          true,
	StatusPendingCancel:   true,
	StatusCanceled:        true,
	StatusRejected:        true,
	StatusExpired:         true,
	StatusExpiredInMatch:  true,
}

// StatusChange is one entry of an order's append-only status log.
type StatusChange struct {
	Status OrderStatus
	At     time.Time
}

// Order is the mutable order entity. It is created at submission and mutated
// only through AddFill, TransitionTo and Cancel; once it reaches a terminal
// status it never changes again, though it stays queryable through the
// engine's history index.
type Order struct {
	ID            string
	ClientOrderID string
	UserID        string
	Symbol        string
	Side          Side
	Type          OrderType
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	Quantity      decimal.Decimal
	QuoteQuantity decimal.Decimal // market orders sized by notional instead of Quantity
	TimeInForce   TimeInForce

	Status             OrderStatus
	ExecutedQuantity   decimal.Decimal
	CumulativeQuoteQty decimal.Decimal
	AvgFillPrice       decimal.Decimal
	Commission         decimal.Decimal
	CommissionAsset    string

	STP        STPMode
	PriceMatch PriceMatch

	StatusHistory []StatusChange
	CreatedAt     time.Time
	ActivatedAt   time.Time
	UpdatedAt     time.Time
}

// RemainingQuantity is always derived, never stored.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.ExecutedQuantity)
}

// QuoteSized reports whether the order is a market order sized by target
// notional rather than base quantity.
func (o *Order) QuoteSized() bool {
	return o.Type == Market && !o.Quantity.IsPositive() && o.QuoteQuantity.IsPositive()
}

func (o *Order) RemainingQuoteQty() decimal.Decimal {
	return o.QuoteQuantity.Sub(o.CumulativeQuoteQty)
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired, StatusExpiredInMatch:
		return true
	}
	return false
}

// RestsOnBook reports whether the order may rest after matching.
func (o *Order) RestsOnBook() bool {
	if o.Type == Market {
		return false
	}
	return o.TimeInForce != IOC && o.TimeInForce != FOK
}

// TransitionTo moves the order to status, appending to the status log only
// on an actual change. Terminal statuses are absorbing. An unknown status
// is a broken integration, not user input, and panics.
func (o *Order) TransitionTo(status OrderStatus, ts time.Time) {
	if !knownStatuses[status] {
		panic(fmt.Sprintf("domain: unknown order status %q", status))
	}
	if o.IsTerminal() || o.Status == status {
		return
	}
	o.Status = status
	o.UpdatedAt = ts
	o.StatusHistory = append(o.StatusHistory, StatusChange{Status: status, At: ts})
}

// AddFill applies one execution to the order. Zero or negative quantities
// are a no-op. Commission accumulates under the first commission asset seen;
// a mismatching asset on a later fill is an anomaly the engine logs, never
// a rejection.
func (o *Order) AddFill(qty, price decimal.Decimal, ts time.Time, commission decimal.Decimal, commissionAsset string, isMaker bool) {
	if !qty.IsPositive() {
		return
	}
	o.ExecutedQuantity = o.ExecutedQuantity.Add(qty)
	o.CumulativeQuoteQty = o.CumulativeQuoteQty.Add(qty.Mul(price))
	o.AvgFillPrice = o.CumulativeQuoteQty.Div(o.ExecutedQuantity)
	o.Commission = o.Commission.Add(commission)
	if o.CommissionAsset == "" {
		o.CommissionAsset = commissionAsset
	}

	var filled bool
	if o.QuoteSized() {
		// sizing by notional divides through the price, which rounds at the
		// division precision; a remainder too small to buy any base at this
		// price is dust, not remaining interest
		filled = !o.RemainingQuoteQty().Div(price).IsPositive()
	} else {
		filled = !o.RemainingQuantity().IsPositive()
	}
	if filled {
		o.TransitionTo(StatusFilled, ts)
	} else {
		o.TransitionTo(StatusPartiallyFilled, ts)
		if o.RestsOnBook() && o.ActivatedAt.IsZero() {
			o.ActivatedAt = ts
		}
	}
}

// Cancel transitions the order to CANCELED. It returns false without
// mutation when the order is already terminal or pending cancellation.
func (o *Order) Cancel(ts time.Time) bool {
	if o.IsTerminal() || o.Status == StatusPendingCancel {
		return false
	}
	o.TransitionTo(StatusCanceled, ts)
	return true
}
