package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradingbot/internal/model"
)

// Memory serves candles held in memory. The current price of a symbol is
// the close of its last candle unless overridden with SetPrice.
type Memory struct {
	mu      sync.RWMutex
	candles map[string][]model.Candle
	prices  map[string]float64
}

// NewMemory creates an empty provider.
func NewMemory() *Memory {
	return &Memory{
		candles: make(map[string][]model.Candle),
		prices:  make(map[string]float64),
	}
}

// Add appends candles for their symbols, keeping each series sorted by time.
func (m *Memory) Add(candles ...model.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	touched := map[string]bool{}
	for _, c := range candles {
		m.candles[c.Symbol] = append(m.candles[c.Symbol], c)
		touched[c.Symbol] = true
	}
	for s := range touched {
		series := m.candles[s]
		sort.SliceStable(series, func(i, j int) bool { return series[i].TS.Before(series[j].TS) })
	}
}

// SetPrice overrides the current price of symbol.
func (m *Memory) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	m.prices[symbol] = price
	m.mu.Unlock()
}

func (m *Memory) GetCurrentPrice(_ context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.prices[symbol]; ok {
		return p, nil
	}
	series := m.candles[symbol]
	if len(series) == 0 {
		return 0, fmt.Errorf("price %s: %w", symbol, ErrUnknownSymbol)
	}
	return series[len(series)-1].Close, nil
}

// GetHistoricalData returns candles with start <= TS <= end, resampled to
// interval when one is given. A zero end is unbounded.
func (m *Memory) GetHistoricalData(_ context.Context, symbol string, start, end time.Time, interval string) ([]model.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	series, ok := m.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("history %s: %w", symbol, ErrUnknownSymbol)
	}
	out := make([]model.Candle, 0, len(series))
	for _, c := range series {
		if c.TS.Before(start) || (!end.IsZero() && c.TS.After(end)) {
			continue
		}
		out = append(out, c)
	}
	if interval == "" {
		return out, nil
	}
	tf, err := IntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	return Resample(out, tf), nil
}

func (m *Memory) GetRecentCandles(_ context.Context, symbol string, limit int) ([]model.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	series, ok := m.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("recent %s: %w", symbol, ErrUnknownSymbol)
	}
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	return append([]model.Candle(nil), series...), nil
}

func (m *Memory) GetRecentPrices(ctx context.Context, symbol string, limit int) ([]float64, error) {
	candles, err := m.GetRecentCandles(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes, nil
}
