package indicator

// EMAState calculates an Exponential Moving Average.
// O(1) per update; no window storage is needed. The first value is the SMA of
// the first period prices; after that EMA = price*α + prev*(1-α), α = 2/(period+1).
type EMAState struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMAState creates a streaming EMA with the given period.
func NewEMAState(period int) *EMAState {
	return &EMAState{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Update feeds the next price.
func (e *EMAState) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMAState) Value() float64 { return e.current }
func (e *EMAState) Ready() bool    { return e.count >= e.period }

// EMA returns the exponential moving average of prices after the last value.
func EMA(prices []float64, period int) (float64, error) {
	series, err := EMASeries(prices, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// EMASeries returns every EMA value from index period-1 onwards, so
// element j belongs to prices[period-1+j].
func EMASeries(prices []float64, period int) ([]float64, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	if err := checkLen("EMA", period, len(prices), period); err != nil {
		return nil, err
	}
	ema := NewEMAState(period)
	out := make([]float64, 0, len(prices)-period+1)
	for _, p := range prices {
		ema.Update(p)
		if ema.Ready() {
			out = append(out, ema.Value())
		}
	}
	return out, nil
}
