package model

import "time"

// Direction is the side of a position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// IsLong reports whether d is the long side.
func (d Direction) IsLong() bool { return d == Long }

// Position is an open position in a portfolio. At most one Position exists
// per symbol.
type Position struct {
	Symbol        string    `json:"symbol"`
	Direction     Direction `json:"direction"`
	EntryPrice    float64   `json:"entry_price"`
	Size          float64   `json:"size"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfit    float64   `json:"take_profit"`
	OpenTime      time.Time `json:"open_time"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
}

// PnLAt returns the profit or loss of the position if closed at price.
func (p *Position) PnLAt(price float64) float64 {
	if p.Direction == Short {
		return p.Size * (p.EntryPrice - price)
	}
	return p.Size * (price - p.EntryPrice)
}

// Notional returns the cash committed when the position was opened.
func (p *Position) Notional() float64 {
	return p.Size * p.EntryPrice
}

// ExitTriggered reports whether price crosses the stop-loss or take-profit.
// Longs exit on price <= stop or price >= target, shorts on the mirror image.
func (p *Position) ExitTriggered(price float64) bool {
	if p.Direction == Short {
		return price >= p.StopLoss || price <= p.TakeProfit
	}
	return price <= p.StopLoss || price >= p.TakeProfit
}

// Trade is the immutable record of a closed position.
type Trade struct {
	Symbol     string        `json:"symbol"`
	Direction  Direction     `json:"direction"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	Size       float64       `json:"size"`
	PnL        float64       `json:"pnl"`
	OpenTime   time.Time     `json:"open_time"`
	CloseTime  time.Time     `json:"close_time"`
	Duration   time.Duration `json:"duration"`
}

// Win reports whether the trade closed with a profit.
func (t *Trade) Win() bool { return t.PnL > 0 }
