package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simexchange/internal/api/dto"
	"simexchange/internal/config"
	"simexchange/internal/core"
	"simexchange/internal/domain"
	"simexchange/internal/middleware"
	"simexchange/internal/port"
)

// HTTPServer is the REST gateway over the matching engine. The engine's own
// mutex serializes calls, so handlers need no extra locking.
type HTTPServer struct {
	eng         *core.MatchingEngine
	cfg         *config.Config
	cache       port.Cache
	log         *zap.Logger
	submittedID sync.Map // deduplication by caller-supplied order id
}

func NewHTTPServer(eng *core.MatchingEngine, cfg *config.Config, cache port.Cache, log *zap.Logger) *HTTPServer {
	return &HTTPServer{eng: eng, cfg: cfg, cache: cache, log: log}
}

func (s *HTTPServer) Run(addr string) error {
	return s.router().Run(addr)
}

func (s *HTTPServer) router() *gin.Engine {
	r := gin.Default()

	rl := middleware.NewRateLimiter(s.cfg.RateLimit)
	r.Use(rl.Middleware())

	r.POST("/orders", s.placeOrder)
	r.POST("/orders/cancel", s.cancelOrder)
	r.GET("/orders/:id", s.getOrder)
	r.GET("/orders", s.getUserOrders)
	r.GET("/orderbook", s.getDepth)
	r.GET("/trades", s.getTrades)

	return r
}

func (s *HTTPServer) placeOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := toDomainOrder(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// pre-submission feedback against symbol filters
	if o.Price.IsPositive() {
		if ok, msg := core.CheckPricePrecision(s.cfg.Symbols, o.Symbol, o.Price); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
	}
	if o.Quantity.IsPositive() {
		if ok, msg := core.CheckQuantityPrecision(s.cfg.Symbols, o.Symbol, o.Quantity); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
	}
	if o.Price.IsPositive() && o.Quantity.IsPositive() {
		if ok, msg := core.CheckNotional(s.cfg.Symbols, o.Symbol, o.Price, o.Quantity); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
	}

	// deduplication
	if req.OrderID != "" {
		if _, exists := s.submittedID.LoadOrStore(req.OrderID, struct{}{}); exists {
			c.JSON(http.StatusOK, gin.H{"message": "duplicate order", "order_id": req.OrderID})
			return
		}
	}

	trades := s.eng.PlaceOrder(c.Request.Context(), o)

	c.JSON(http.StatusOK, dto.PlaceOrderResponse{
		Order:  convertOrder(o),
		Trades: convertTrades(trades),
	})
}

func (s *HTTPServer) cancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok := s.eng.CancelOrder(c.Request.Context(), req.OrderID, req.Symbol)
	c.JSON(http.StatusOK, dto.CancelOrderResponse{
		OrderID:   req.OrderID,
		Cancelled: ok,
	})
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	id := c.Param("id")
	o, ok := s.eng.GetOrder(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, dto.GetOrderResponse{Order: convertOrder(o)})
}

func (s *HTTPServer) getUserOrders(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	if clientOrderID := c.Query("client_order_id"); clientOrderID != "" {
		o, ok := s.eng.GetOrderByClientID(userID, clientOrderID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusOK, dto.GetOrdersResponse{Orders: []dto.Order{convertOrder(o)}})
		return
	}
	orders := s.eng.UserOrders(userID)
	out := make([]dto.Order, len(orders))
	for i, o := range orders {
		out[i] = convertOrder(o)
	}
	c.JSON(http.StatusOK, dto.GetOrdersResponse{Orders: out})
}

func (s *HTTPServer) getDepth(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	levels := 20
	if v := c.Query("levels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "levels must be a positive integer"})
			return
		}
		levels = n
	}

	// cache first, engine as the source of truth
	if s.cache != nil && levels <= 20 {
		if snap, err := s.cache.GetDepth(c.Request.Context(), symbol); err == nil && snap != nil {
			c.JSON(http.StatusOK, convertDepth(snap, levels))
			return
		}
	}
	c.JSON(http.StatusOK, convertDepth(s.eng.Depth(symbol, levels), levels))
}

func (s *HTTPServer) getTrades(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, dto.GetTradesResponse{Trades: convertTrades(s.eng.Trades(limit))})
}

// toDomainOrder converts the wire request into the domain entity, mapping
// every enum string to its closed variant exactly once, here at the
// boundary.
func toDomainOrder(req *dto.PlaceOrderRequest) (*domain.Order, error) {
	side := domain.Side(req.Side)
	switch side {
	case domain.Buy, domain.Sell:
	default:
		return nil, fmt.Errorf("invalid side: %s", req.Side)
	}

	typ := domain.OrderType(req.Type)
	switch typ {
	case domain.Market, domain.Limit, domain.Stop, domain.StopLimit:
	default:
		return nil, fmt.Errorf("invalid order type: %s", req.Type)
	}

	tif := domain.TimeInForce(req.TimeInForce)
	switch tif {
	case "", domain.GTC, domain.IOC, domain.FOK:
	default:
		return nil, fmt.Errorf("invalid time in force: %s", req.TimeInForce)
	}

	pm := domain.PriceMatch(strings.ToUpper(strings.TrimSpace(req.PriceMatch)))
	if pm == "" {
		pm = domain.PriceMatchNone
	}

	return &domain.Order{
		ID:            req.OrderID,
		ClientOrderID: req.ClientOrderID,
		UserID:        req.UserID,
		Symbol:        req.Symbol,
		Side:          side,
		Type:          typ,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		Quantity:      req.Quantity,
		QuoteQuantity: req.QuoteQuantity,
		TimeInForce:   tif,
		STP:           domain.STPMode(req.STPMode),
		PriceMatch:    pm,
	}, nil
}

func convertOrder(o *domain.Order) dto.Order {
	return dto.Order{
		ID:                 o.ID,
		ClientOrderID:      o.ClientOrderID,
		UserID:             o.UserID,
		Symbol:             o.Symbol,
		Side:               string(o.Side),
		Type:               string(o.Type),
		Price:              o.Price,
		StopPrice:          o.StopPrice,
		Quantity:           o.Quantity,
		QuoteQuantity:      o.QuoteQuantity,
		TimeInForce:        string(o.TimeInForce),
		Status:             string(o.Status),
		ExecutedQuantity:   o.ExecutedQuantity,
		CumulativeQuoteQty: o.CumulativeQuoteQty,
		AvgFillPrice:       o.AvgFillPrice,
		Commission:         o.Commission,
		CommissionAsset:    o.CommissionAsset,
		CreatedAt:          o.CreatedAt,
	}
}

func convertTrades(trades []*domain.Trade) []dto.Trade {
	res := make([]dto.Trade, len(trades))
	for i, t := range trades {
		res[i] = dto.Trade{
			ID:              t.ID,
			OrderID:         t.OrderID,
			Symbol:          t.Symbol,
			Price:           t.Price,
			Quantity:        t.Quantity,
			QuoteQty:        t.QuoteQty,
			Side:            string(t.Side),
			Commission:      t.Commission,
			CommissionAsset: t.CommissionAsset,
			IsMaker:         t.IsMaker,
			Timestamp:       t.Timestamp,
		}
	}
	return res
}

func convertDepth(snap *domain.DepthSnapshot, levels int) dto.DepthResponse {
	resp := dto.DepthResponse{
		Symbol:    snap.Symbol,
		Bids:      make([]dto.PriceLevel, 0, levels),
		Asks:      make([]dto.PriceLevel, 0, levels),
		Timestamp: snap.Timestamp,
	}
	for i, lvl := range snap.Bids {
		if i >= levels {
			break
		}
		resp.Bids = append(resp.Bids, dto.PriceLevel{Price: lvl.Price, Quantity: lvl.Quantity})
	}
	for i, lvl := range snap.Asks {
		if i >= levels {
			break
		}
		resp.Asks = append(resp.Asks, dto.PriceLevel{Price: lvl.Price, Quantity: lvl.Quantity})
	}
	return resp
}
