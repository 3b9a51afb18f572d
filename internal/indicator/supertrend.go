package indicator

// SuperTrendResult holds the per-index trend flag and active band.
// Index j of Up and Value belongs to input index Start+j.
type SuperTrendResult struct {
	Start int       `json:"start"`
	Up    []bool    `json:"up"`
	Value []float64 `json:"value"`
}

// Len returns the number of computed points.
func (r SuperTrendResult) Len() int { return len(r.Up) }

// LastUp reports the trend at the final index.
func (r SuperTrendResult) LastUp() bool {
	return len(r.Up) > 0 && r.Up[len(r.Up)-1]
}

// Flipped reports whether the trend changed direction on the final index.
func (r SuperTrendResult) Flipped() bool {
	n := len(r.Up)
	return n >= 2 && r.Up[n-1] != r.Up[n-2]
}

// SuperTrend computes the SuperTrend indicator.
//
// Basic bands are (high+low)/2 ± multiplier·ATR(period). The initial trend
// is up when the first close is above its lower band. While up, a close
// below the previous SuperTrend value flips the trend down and the active
// band becomes the upper band; while down, a close above the previous value
// flips it up. Output starts at the first index with an ATR value.
func SuperTrend(highs, lows, closes []float64, period int, multiplier float64) (SuperTrendResult, error) {
	atr, err := ATRSeries(highs, lows, closes, period)
	if err != nil {
		return SuperTrendResult{}, err
	}

	start := period
	n := len(closes) - start
	res := SuperTrendResult{
		Start: start,
		Up:    make([]bool, n),
		Value: make([]float64, n),
	}

	upper := func(j int) float64 { return (highs[start+j]+lows[start+j])/2 + multiplier*atr[j] }
	lower := func(j int) float64 { return (highs[start+j]+lows[start+j])/2 - multiplier*atr[j] }

	isUp := closes[start] > lower(0)
	for j := 0; j < n; j++ {
		c := closes[start+j]
		if isUp {
			if j > 0 && c < res.Value[j-1] {
				isUp = false
				res.Value[j] = upper(j)
			} else {
				res.Value[j] = lower(j)
			}
		} else {
			if j > 0 && c > res.Value[j-1] {
				isUp = true
				res.Value[j] = lower(j)
			} else {
				res.Value[j] = upper(j)
			}
		}
		res.Up[j] = isUp
	}
	return res, nil
}
