package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"simexchange/internal/domain"
)

// resolvePriceMatch turns a pegged price-match mode into a concrete price
// against the current book. Modes are OPPONENT[_N] (N-th best price on the
// opposite side) and QUEUE[_N] (N-th best on the same side), N defaulting
// to 1. A malformed or unparsable suffix, an unknown mode, or fewer than N
// distinct levels on the reference side all fail resolution, which rejects
// the order.
func resolvePriceMatch(book *OrderBook, side domain.Side, mode domain.PriceMatch) (decimal.Decimal, error) {
	m := strings.ToUpper(strings.TrimSpace(string(mode)))

	var refSide domain.Side
	var suffix string
	switch {
	case m == "OPPONENT" || strings.HasPrefix(m, "OPPONENT_"):
		refSide = opposite(side)
		suffix = strings.TrimPrefix(m, "OPPONENT")
	case m == "QUEUE" || strings.HasPrefix(m, "QUEUE_"):
		refSide = side
		suffix = strings.TrimPrefix(m, "QUEUE")
	default:
		return decimal.Decimal{}, fmt.Errorf("unknown price match mode %q", mode)
	}

	n := 1
	if suffix != "" {
		parsed, err := strconv.Atoi(strings.TrimPrefix(suffix, "_"))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("price match mode %q: unparsable level suffix", mode)
		}
		if parsed <= 0 {
			return decimal.Decimal{}, fmt.Errorf("price match mode %q: level must be positive", mode)
		}
		n = parsed
	}

	price, ok := book.PriceAtLevel(refSide, n)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("price match mode %q: fewer than %d levels on %s side", mode, n, refSide)
	}
	return price, nil
}

func opposite(side domain.Side) domain.Side {
	if side == domain.Buy {
		return domain.Sell
	}
	return domain.Buy
}
