package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simexchange/internal/config"
	"simexchange/internal/domain"
)

func TestValidateOrderRules(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		mutate  func(*domain.Order)
		wantErr string
	}{
		{
			name:   "valid limit",
			mutate: func(o *domain.Order) {},
		},
		{
			name:    "empty symbol",
			mutate:  func(o *domain.Order) { o.Symbol = "  " },
			wantErr: "symbol must not be empty",
		},
		{
			name:    "zero quantity",
			mutate:  func(o *domain.Order) { o.Quantity = dec("0") },
			wantErr: "quantity must be positive",
		},
		{
			name:    "negative quantity",
			mutate:  func(o *domain.Order) { o.Quantity = dec("-1") },
			wantErr: "quantity must be positive",
		},
		{
			name:    "limit without price",
			mutate:  func(o *domain.Order) { o.Price = dec("0") },
			wantErr: "limit order requires a positive price",
		},
		{
			name: "limit without price and explicit none peg",
			mutate: func(o *domain.Order) {
				o.Price = dec("0")
				o.PriceMatch = domain.PriceMatchNone
			},
			wantErr: "limit order requires a positive price",
		},
		{
			name: "pegged limit with negative price",
			mutate: func(o *domain.Order) {
				o.Price = dec("-1")
				o.PriceMatch = "OPPONENT"
			},
			wantErr: "limit order requires a positive price",
		},
		{
			name: "stop without stop price",
			mutate: func(o *domain.Order) {
				o.Type = domain.Stop
				o.StopPrice = dec("0")
			},
			wantErr: "stop order requires a positive stop price",
		},
		{
			name: "stop limit without price",
			mutate: func(o *domain.Order) {
				o.Type = domain.StopLimit
				o.StopPrice = dec("105")
				o.Price = dec("0")
			},
			wantErr: "stop-limit order requires a positive price",
		},
		{
			name:    "unknown type",
			mutate:  func(o *domain.Order) { o.Type = domain.OrderType("TRAILING") },
			wantErr: `unsupported order type "TRAILING"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := restingOrder("v-1", domain.Buy, "100", "1")
			tc.mutate(o)
			ok, errs := ValidateOrder(o, now)
			if tc.wantErr == "" {
				assert.True(t, ok)
				assert.Empty(t, errs)
				assert.NotEqual(t, domain.StatusRejected, o.Status)
				return
			}
			require.False(t, ok)
			assert.Contains(t, errs, tc.wantErr)
			assert.Equal(t, domain.StatusRejected, o.Status)
		})
	}
}

func TestValidateQuoteSizedMarketOrder(t *testing.T) {
	o := &domain.Order{
		Symbol:        "BTCUSDT",
		Side:          domain.Buy,
		Type:          domain.Market,
		QuoteQuantity: dec("150"),
	}
	ok, errs := ValidateOrder(o, time.Now())
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidatePeggedLimitSkipsPriceRule(t *testing.T) {
	o := restingOrder("v-2", domain.Buy, "0", "1")
	o.PriceMatch = "OPPONENT"
	ok, errs := ValidateOrder(o, time.Now())
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestPrecisionChecks(t *testing.T) {
	symbols := config.Default().Symbols // BTCUSDT: price 2dp, qty 5dp

	ok, _ := CheckPricePrecision(symbols, "BTCUSDT", dec("100.25"))
	assert.True(t, ok)
	ok, msg := CheckPricePrecision(symbols, "BTCUSDT", dec("100.255"))
	assert.False(t, ok)
	assert.Contains(t, msg, "price")

	ok, _ = CheckQuantityPrecision(symbols, "BTCUSDT", dec("0.00001"))
	assert.True(t, ok)
	ok, msg = CheckQuantityPrecision(symbols, "BTCUSDT", dec("0.000001"))
	assert.False(t, ok)
	assert.Contains(t, msg, "quantity")

	// unconfigured symbols are not constrained
	ok, _ = CheckPricePrecision(symbols, "DOGEUSDT", dec("0.123456789"))
	assert.True(t, ok)
}

func TestNotionalCheck(t *testing.T) {
	symbols := config.Default().Symbols // min notional 10

	ok, _ := CheckNotional(symbols, "BTCUSDT", dec("100"), dec("0.1"))
	assert.True(t, ok)
	ok, msg := CheckNotional(symbols, "BTCUSDT", dec("100"), dec("0.05"))
	assert.False(t, ok)
	assert.Contains(t, msg, "notional")
	ok, _ = CheckNotional(symbols, "DOGEUSDT", dec("0.01"), dec("1"))
	assert.True(t, ok)
}

func TestFeeCalculatorAssetsFallback(t *testing.T) {
	eng := newEngine()
	base, quote := eng.fees.Assets("BTCUSDT")
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	base, quote = eng.fees.Assets("SOLUSDT") // not configured, suffix fallback
	assert.Equal(t, "SOL", base)
	assert.Equal(t, "USDT", quote)

	base, quote = eng.fees.Assets("WEIRD")
	assert.Equal(t, "WEIRD", base)
	assert.Equal(t, "", quote)
}
