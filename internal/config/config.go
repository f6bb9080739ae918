package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// SymbolConfig carries the per-symbol exchange metadata. Base and quote
// assets are explicit here; deriving them from the symbol string is only
// a fallback for symbols missing from configuration.
type SymbolConfig struct {
	BaseAsset         string
	QuoteAsset        string
	PricePrecision    int32
	QuantityPrecision int32
	MinNotional       decimal.Decimal
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type Config struct {
	HTTPAddr  string
	RateLimit time.Duration
	Redis     RedisConfig
	MakerRate decimal.Decimal
	TakerRate decimal.Decimal
	Symbols   map[string]SymbolConfig
}

type rawSymbol struct {
	BaseAsset         string `mapstructure:"base_asset"`
	QuoteAsset        string `mapstructure:"quote_asset"`
	PricePrecision    int32  `mapstructure:"price_precision"`
	QuantityPrecision int32  `mapstructure:"quantity_precision"`
	MinNotional       string `mapstructure:"min_notional"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		HTTPAddr:  ":8080",
		RateLimit: 100 * time.Millisecond,
		Redis:     RedisConfig{TTL: 5 * time.Minute},
		MakerRate: decimal.NewFromFloat(0.001),
		TakerRate: decimal.NewFromFloat(0.001),
		Symbols: map[string]SymbolConfig{
			"BTCUSDT": {
				BaseAsset:         "BTC",
				QuoteAsset:        "USDT",
				PricePrecision:    2,
				QuantityPrecision: 5,
				MinNotional:       decimal.NewFromInt(10),
			},
			"ETHUSDT": {
				BaseAsset:         "ETH",
				QuoteAsset:        "USDT",
				PricePrecision:    2,
				QuantityPrecision: 4,
				MinNotional:       decimal.NewFromInt(10),
			},
		},
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("rate_limit", cfg.RateLimit)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", cfg.Redis.TTL)
	v.SetDefault("fees.maker_rate", "0.001")
	v.SetDefault("fees.taker_rate", "0.001")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.HTTPAddr = v.GetString("http_addr")
	cfg.RateLimit = v.GetDuration("rate_limit")
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		TTL:      v.GetDuration("redis.ttl"),
	}

	maker, err := decimal.NewFromString(v.GetString("fees.maker_rate"))
	if err != nil {
		return nil, fmt.Errorf("config: fees.maker_rate: %w", err)
	}
	taker, err := decimal.NewFromString(v.GetString("fees.taker_rate"))
	if err != nil {
		return nil, fmt.Errorf("config: fees.taker_rate: %w", err)
	}
	cfg.MakerRate = maker
	cfg.TakerRate = taker

	if v.IsSet("symbols") {
		raw := map[string]rawSymbol{}
		if err := v.UnmarshalKey("symbols", &raw); err != nil {
			return nil, fmt.Errorf("config: symbols: %w", err)
		}
		cfg.Symbols = make(map[string]SymbolConfig, len(raw))
		for sym, rs := range raw {
			sc := SymbolConfig{
				BaseAsset:         rs.BaseAsset,
				QuoteAsset:        rs.QuoteAsset,
				PricePrecision:    rs.PricePrecision,
				QuantityPrecision: rs.QuantityPrecision,
			}
			if rs.MinNotional != "" {
				mn, err := decimal.NewFromString(rs.MinNotional)
				if err != nil {
					return nil, fmt.Errorf("config: symbols.%s.min_notional: %w", sym, err)
				}
				sc.MinNotional = mn
			}
			// viper lowercases map keys; symbols are upper-case by convention
			cfg.Symbols[strings.ToUpper(sym)] = sc
		}
	}

	return cfg, nil
}
