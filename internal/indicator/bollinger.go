package indicator

import "math"

// Bands holds Bollinger Band values.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Width returns (upper-lower)/middle, or 0 when middle is 0.
func (b Bands) Width() float64 {
	if b.Middle == 0 {
		return 0
	}
	return (b.Upper - b.Lower) / b.Middle
}

// Bollinger returns bands of stdDev population standard deviations around
// the SMA(period) of the last period prices.
func Bollinger(prices []float64, period int, stdDev float64) (Bands, error) {
	middle, err := SMA(prices, period)
	if err != nil {
		return Bands{}, err
	}
	variance := 0.0
	for _, p := range prices[len(prices)-period:] {
		d := p - middle
		variance += d * d
	}
	sigma := math.Sqrt(variance / float64(period))
	return Bands{
		Upper:  middle + stdDev*sigma,
		Middle: middle,
		Lower:  middle - stdDev*sigma,
	}, nil
}
