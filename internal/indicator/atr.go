package indicator

import "math"

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) for
// every index from 1, so element j belongs to input index j+1.
func TrueRange(highs, lows, closes []float64) ([]float64, error) {
	if err := checkRange("TrueRange", highs, lows, closes); err != nil {
		return nil, err
	}
	if len(closes) < 2 {
		return nil, checkLen("TrueRange", 1, len(closes), 2)
	}
	tr := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr = append(tr, math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1]))))
	}
	return tr, nil
}

// ATR returns the EMA(period) of the true range. Needs period+1 bars.
func ATR(highs, lows, closes []float64, period int) (float64, error) {
	series, err := ATRSeries(highs, lows, closes, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// ATRSeries returns ATR values aligned so element j belongs to input
// index period+j.
func ATRSeries(highs, lows, closes []float64, period int) ([]float64, error) {
	if err := checkPeriod("ATR", period); err != nil {
		return nil, err
	}
	if err := checkRange("ATR", highs, lows, closes); err != nil {
		return nil, err
	}
	if err := checkLen("ATR", period, len(closes), period+1); err != nil {
		return nil, err
	}
	tr, err := TrueRange(highs, lows, closes)
	if err != nil {
		return nil, err
	}
	return EMASeries(tr, period)
}
