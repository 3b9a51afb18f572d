package indicator

// RSIState calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per price with no history scans.
type RSIState struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSIState creates a streaming RSI with the given period (typically 14).
func NewRSIState(period int) *RSIState {
	return &RSIState{period: period}
}

// Update feeds the next closing price.
func (r *RSIState) Update(price float64) {
	r.count++

	if r.count == 1 {
		// first price: record it, no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain := 0.0
	loss := 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count <= r.period+1 {
		// Accumulation phase: build initial averages
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiFrom(r.avgGain, r.avgLoss)
		}
		return
	}

	// Wilder's smoothing: avgGain = (prevAvgGain * (period-1) + gain) / period
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.current = rsiFrom(r.avgGain, r.avgLoss)
}

func (r *RSIState) Value() float64 { return r.current }
func (r *RSIState) Ready() bool    { return r.count > r.period }

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSI returns the Wilder RSI after the last price. Needs period+1 prices.
func RSI(prices []float64, period int) (float64, error) {
	if err := checkPeriod("RSI", period); err != nil {
		return 0, err
	}
	if err := checkLen("RSI", period, len(prices), period+1); err != nil {
		return 0, err
	}
	rsi := NewRSIState(period)
	for _, p := range prices {
		rsi.Update(p)
	}
	return rsi.Value(), nil
}
