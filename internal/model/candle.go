package model

import "time"

// Candle represents one OHLCV bar for a fixed interval.
// Candles are produced by a MarketDataProvider in chronological order and
// are never mutated afterwards.
type Candle struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bar open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceWindow is the ordered price history a strategy analyzes.
// Closes is always set; Highs and Lows are parallel to Closes when the
// window was built from candles and nil when only closing prices are known.
type PriceWindow struct {
	Closes []float64
	Highs  []float64
	Lows   []float64
}

// WindowFromCandles builds a window with parallel high/low/close sequences.
func WindowFromCandles(candles []Candle) PriceWindow {
	w := PriceWindow{
		Closes: make([]float64, len(candles)),
		Highs:  make([]float64, len(candles)),
		Lows:   make([]float64, len(candles)),
	}
	for i, c := range candles {
		w.Closes[i] = c.Close
		w.Highs[i] = c.High
		w.Lows[i] = c.Low
	}
	return w
}

// WindowFromCloses builds a close-only window.
func WindowFromCloses(closes []float64) PriceWindow {
	return PriceWindow{Closes: closes}
}

// Len returns the number of observations in the window.
func (w PriceWindow) Len() int { return len(w.Closes) }

// Last returns the most recent close, or 0 for an empty window.
func (w PriceWindow) Last() float64 {
	if len(w.Closes) == 0 {
		return 0
	}
	return w.Closes[len(w.Closes)-1]
}

// HasRange reports whether the window carries high/low data for every close.
func (w PriceWindow) HasRange() bool {
	return len(w.Highs) == len(w.Closes) && len(w.Lows) == len(w.Closes) && len(w.Closes) > 0
}

// Prefix returns the window truncated to its first n observations.
// The returned window shares the backing arrays.
func (w PriceWindow) Prefix(n int) PriceWindow {
	p := PriceWindow{Closes: w.Closes[:n]}
	if w.HasRange() {
		p.Highs = w.Highs[:n]
		p.Lows = w.Lows[:n]
	}
	return p
}
