package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable execution record. Every match produces two of them,
// one for the taker and one for the maker, sharing price, quantity, quote
// quantity and timestamp. IDs come from the engine's global counter so the
// full trade log has a total audit ordering across symbols.
type Trade struct {
	ID              int64
	OrderID         string
	Symbol          string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	QuoteQty        decimal.Decimal
	Side            Side
	Commission      decimal.Decimal
	CommissionAsset string
	IsMaker         bool
	Timestamp       time.Time
}
