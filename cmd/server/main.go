package main

import (
	"flag"

	"go.uber.org/zap"

	"simexchange/internal/adapter/cache"
	"simexchange/internal/adapter/in_memory"
	"simexchange/internal/api/http"
	"simexchange/internal/config"
	"simexchange/internal/core"
	"simexchange/internal/domain"
	"simexchange/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	var depthCache port.Cache = in_memory.NewCache()
	if cfg.Redis.Addr != "" {
		depthCache = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		logger.Info("publishing depth snapshots to redis", zap.String("addr", cfg.Redis.Addr))
	}

	engine := core.NewMatchingEngine(cfg, depthCache, logger)
	engine.RegisterTradeListener(func(t *domain.Trade) {
		logger.Info("trade executed",
			zap.Int64("trade_id", t.ID),
			zap.String("symbol", t.Symbol),
			zap.String("price", t.Price.String()),
			zap.String("quantity", t.Quantity.String()),
			zap.Bool("is_maker", t.IsMaker))
	})
	server := http.NewHTTPServer(engine, cfg, depthCache, logger)

	logger.Info("starting HTTP server", zap.String("addr", cfg.HTTPAddr))
	if err := server.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
}
