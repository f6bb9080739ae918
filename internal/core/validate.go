package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"simexchange/internal/config"
	"simexchange/internal/domain"
)

// ValidateOrder runs the stateless submission rules. On failure it sets the
// order to REJECTED (a documented side effect, relied on by the engine) and
// returns the rule violations.
func ValidateOrder(o *domain.Order, now time.Time) (bool, []string) {
	var errs []string

	if strings.TrimSpace(o.Symbol) == "" {
		errs = append(errs, "symbol must not be empty")
	}
	if !o.Quantity.IsPositive() && !o.QuoteSized() {
		errs = append(errs, "quantity must be positive")
	}

	switch o.Type {
	case domain.Market:
	case domain.Limit:
		if o.Price.IsZero() && o.PriceMatch.Pegged() {
			// price arrives from pegged resolution before validation
		} else if !o.Price.IsPositive() {
			errs = append(errs, "limit order requires a positive price")
		}
	case domain.Stop:
		if !o.StopPrice.IsPositive() {
			errs = append(errs, "stop order requires a positive stop price")
		}
	case domain.StopLimit:
		if !o.StopPrice.IsPositive() {
			errs = append(errs, "stop-limit order requires a positive stop price")
		}
		if !o.Price.IsPositive() {
			errs = append(errs, "stop-limit order requires a positive price")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported order type %q", o.Type))
	}

	if len(errs) > 0 {
		o.TransitionTo(domain.StatusRejected, now)
		return false, errs
	}
	return true, nil
}

// CheckPricePrecision reports whether price fits the symbol's tick
// precision. Pure; intended for pre-submission feedback at the transport
// layer. Unknown symbols pass.
func CheckPricePrecision(symbols map[string]config.SymbolConfig, symbol string, price decimal.Decimal) (bool, string) {
	sc, ok := symbols[symbol]
	if !ok {
		return true, ""
	}
	if !price.Equal(price.Truncate(sc.PricePrecision)) {
		return false, fmt.Sprintf("price %s exceeds %d decimal places for %s", price, sc.PricePrecision, symbol)
	}
	return true, ""
}

// CheckQuantityPrecision reports whether qty fits the symbol's lot
// precision.
func CheckQuantityPrecision(symbols map[string]config.SymbolConfig, symbol string, qty decimal.Decimal) (bool, string) {
	sc, ok := symbols[symbol]
	if !ok {
		return true, ""
	}
	if !qty.Equal(qty.Truncate(sc.QuantityPrecision)) {
		return false, fmt.Sprintf("quantity %s exceeds %d decimal places for %s", qty, sc.QuantityPrecision, symbol)
	}
	return true, ""
}

// CheckNotional reports whether price*qty clears the symbol's minimum
// notional.
func CheckNotional(symbols map[string]config.SymbolConfig, symbol string, price, qty decimal.Decimal) (bool, string) {
	sc, ok := symbols[symbol]
	if !ok || !sc.MinNotional.IsPositive() {
		return true, ""
	}
	notional := price.Mul(qty)
	if notional.LessThan(sc.MinNotional) {
		return false, fmt.Sprintf("notional %s below minimum %s for %s", notional, sc.MinNotional, symbol)
	}
	return true, ""
}
