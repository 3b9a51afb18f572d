package indicator

// SMAState calculates a Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer for zero-allocation updates.
type SMAState struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMAState creates a streaming SMA with the given period.
func NewSMAState(period int) *SMAState {
	return &SMAState{
		period: period,
		buf:    make([]float64, period),
	}
}

// Update feeds the next price.
func (s *SMAState) Update(price float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = price
	s.sum += price
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMAState) Value() float64 { return s.current }
func (s *SMAState) Ready() bool    { return s.count >= s.period }

// SMA returns the arithmetic mean of the last period values.
func SMA(prices []float64, period int) (float64, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return 0, err
	}
	if err := checkLen("SMA", period, len(prices), period); err != nil {
		return 0, err
	}
	// only the last period values can affect the result
	sma := NewSMAState(period)
	for _, p := range prices[len(prices)-period:] {
		sma.Update(p)
	}
	return sma.Value(), nil
}
