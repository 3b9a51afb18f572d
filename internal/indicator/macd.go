package indicator

import "fmt"

// MACDResult holds the last MACD line, signal line and histogram values.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD computes EMA(fast) - EMA(slow), its EMA(signal) and the histogram.
// The MACD series starts once the slow EMA is seeded, so the window needs
// slow+signal-1 prices.
func MACD(prices []float64, fast, slow, signal int) (MACDResult, error) {
	for _, p := range []int{fast, slow, signal} {
		if err := checkPeriod("MACD", p); err != nil {
			return MACDResult{}, err
		}
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("MACD(%d,%d,%d): fast must be < slow: %w", fast, slow, signal, ErrInvalidPeriod)
	}
	if err := checkLen("MACD", slow, len(prices), slow+signal-1); err != nil {
		return MACDResult{}, err
	}

	fastEMA := NewEMAState(fast)
	slowEMA := NewEMAState(slow)
	signalEMA := NewEMAState(signal)
	var line float64
	for _, p := range prices {
		fastEMA.Update(p)
		slowEMA.Update(p)
		if !slowEMA.Ready() {
			continue
		}
		line = fastEMA.Value() - slowEMA.Value()
		signalEMA.Update(line)
	}
	return MACDResult{
		MACD:      line,
		Signal:    signalEMA.Value(),
		Histogram: line - signalEMA.Value(),
	}, nil
}
