package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"simexchange/internal/config"
	"simexchange/internal/domain"
)

// quoteSuffixes is the fallback order for deriving assets from a symbol
// name when configuration does not carry explicit base/quote assets.
var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "BTC", "ETH", "BNB", "EUR", "USD"}

// FeeCalculator computes per-fill commissions. The buyer receives base
// asset and pays commission in it (qty x rate); the seller receives quote
// and pays in it (qty x price x rate).
type FeeCalculator struct {
	makerRate decimal.Decimal
	takerRate decimal.Decimal
	symbols   map[string]config.SymbolConfig
	log       *zap.Logger
}

func NewFeeCalculator(cfg *config.Config, log *zap.Logger) *FeeCalculator {
	return &FeeCalculator{
		makerRate: cfg.MakerRate,
		takerRate: cfg.TakerRate,
		symbols:   cfg.Symbols,
		log:       log,
	}
}

// Assets resolves the base and quote asset for a symbol. Symbols absent
// from configuration fall back to the trailing-quote-suffix convention,
// logged because the convention breaks for arbitrary symbol names.
func (f *FeeCalculator) Assets(symbol string) (base, quote string) {
	if sc, ok := f.symbols[symbol]; ok && sc.BaseAsset != "" && sc.QuoteAsset != "" {
		return sc.BaseAsset, sc.QuoteAsset
	}
	for _, q := range quoteSuffixes {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			f.log.Warn("deriving assets from symbol suffix, configure the symbol instead",
				zap.String("symbol", symbol))
			return strings.TrimSuffix(symbol, q), q
		}
	}
	f.log.Warn("cannot resolve assets for symbol", zap.String("symbol", symbol))
	return symbol, ""
}

// Commission returns the fee amount and fee asset for one side of a match.
func (f *FeeCalculator) Commission(symbol string, side domain.Side, qty, price decimal.Decimal, isMaker bool) (decimal.Decimal, string) {
	rate := f.takerRate
	if isMaker {
		rate = f.makerRate
	}
	base, quote := f.Assets(symbol)
	if side == domain.Buy {
		return qty.Mul(rate), base
	}
	return qty.Mul(price).Mul(rate), quote
}
