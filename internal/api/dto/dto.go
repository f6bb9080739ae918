package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlaceOrderRequest struct {
	OrderID       string          `json:"order_id,omitempty"` // for deduplication
	UserID        string          `json:"user_id" binding:"required"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Symbol        string          `json:"symbol" binding:"required"`
	Side          string          `json:"side" binding:"required"`
	Type          string          `json:"type" binding:"required"`
	Price         decimal.Decimal `json:"price,omitempty"`
	StopPrice     decimal.Decimal `json:"stop_price,omitempty"`
	Quantity      decimal.Decimal `json:"quantity,omitempty"`
	QuoteQuantity decimal.Decimal `json:"quote_quantity,omitempty"`
	TimeInForce   string          `json:"time_in_force,omitempty"`
	STPMode       string          `json:"stp_mode,omitempty"`
	PriceMatch    string          `json:"price_match,omitempty"`
}

type PlaceOrderResponse struct {
	Order  Order   `json:"order"`
	Trades []Trade `json:"trades"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Symbol  string `json:"symbol,omitempty"`
}

type CancelOrderResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

type GetOrderResponse struct {
	Order Order `json:"order"`
}

type GetOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type GetTradesResponse struct {
	Trades []Trade `json:"trades"`
}

type Order struct {
	ID                 string          `json:"id"`
	ClientOrderID      string          `json:"client_order_id,omitempty"`
	UserID             string          `json:"user_id"`
	Symbol             string          `json:"symbol"`
	Side               string          `json:"side"`
	Type               string          `json:"type"`
	Price              decimal.Decimal `json:"price"`
	StopPrice          decimal.Decimal `json:"stop_price,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
	QuoteQuantity      decimal.Decimal `json:"quote_quantity,omitempty"`
	TimeInForce        string          `json:"time_in_force"`
	Status             string          `json:"status"`
	ExecutedQuantity   decimal.Decimal `json:"executed_quantity"`
	CumulativeQuoteQty decimal.Decimal `json:"cumulative_quote_qty"`
	AvgFillPrice       decimal.Decimal `json:"avg_fill_price"`
	Commission         decimal.Decimal `json:"commission"`
	CommissionAsset    string          `json:"commission_asset,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type Trade struct {
	ID              int64           `json:"id"`
	OrderID         string          `json:"order_id"`
	Symbol          string          `json:"symbol"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	QuoteQty        decimal.Decimal `json:"quote_qty"`
	Side            string          `json:"side"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commission_asset,omitempty"`
	IsMaker         bool            `json:"is_maker"`
	Timestamp       time.Time       `json:"timestamp"`
}

type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

type DepthResponse struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}
