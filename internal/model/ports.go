package model

import (
	"context"
	"time"
)

// ── External collaborator ports ──
// The engine never performs network I/O itself; everything it needs from
// the outside world comes through these interfaces.

// MarketDataProvider supplies prices and candle history.
type MarketDataProvider interface {
	// GetCurrentPrice returns the latest traded price for symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// GetHistoricalData returns candles in [start, end] ordered by time.
	GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Candle, error)

	// GetRecentPrices returns the last limit closing prices, oldest first.
	GetRecentPrices(ctx context.Context, symbol string, limit int) ([]float64, error)
}

// RecentCandleProvider is an optional capability of a MarketDataProvider.
// Range-based strategies (DMI, SuperTrend) need highs and lows, which plain
// closing prices do not carry.
type RecentCandleProvider interface {
	GetRecentCandles(ctx context.Context, symbol string, limit int) ([]Candle, error)
}

// OrderGateway places orders with a broker or a simulator.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderReceipt, error)
}

// TradeRecorder receives every closed trade (journal, notifications).
type TradeRecorder interface {
	RecordTrade(ctx context.Context, trade Trade) error
}

// RecentWindow reads the last limit observations for symbol. Candles are
// preferred when p implements RecentCandleProvider, so the window carries
// highs and lows.
func RecentWindow(ctx context.Context, p MarketDataProvider, symbol string, limit int) (PriceWindow, error) {
	if cp, ok := p.(RecentCandleProvider); ok {
		candles, err := cp.GetRecentCandles(ctx, symbol, limit)
		if err != nil {
			return PriceWindow{}, err
		}
		return WindowFromCandles(candles), nil
	}
	closes, err := p.GetRecentPrices(ctx, symbol, limit)
	if err != nil {
		return PriceWindow{}, err
	}
	return WindowFromCloses(closes), nil
}
