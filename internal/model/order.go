package model

import "time"

// OrderRequest is an order handed to an OrderGateway.
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	IsBuy      bool    `json:"is_buy"`
	Price      float64 `json:"price"` // reference price, 0 = market
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// OrderReceipt is the gateway's acknowledgement of an order.
type OrderReceipt struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Status    string    `json:"status"` // FILLED, REJECTED
	FillPrice float64   `json:"fill_price"`
	Quantity  float64   `json:"quantity"`
	FilledAt  time.Time `json:"filled_at"`
}
