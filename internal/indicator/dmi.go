package indicator

import "math"

// DMIResult holds the directional indicators.
//
// ADX is the single-period directional index DX = |+DI − −DI| / (+DI + −DI) × 100.
// It is NOT Wilder's ADX (which smooths DX once more over period bars); the
// field keeps the name the strategies and thresholds were tuned against.
type DMIResult struct {
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
	ADX     float64 `json:"adx"`
}

// DirectionalMovement returns the +DM and −DM series for index 1 onwards.
// Only the larger positive move counts; equal moves yield 0 for both.
func DirectionalMovement(highs, lows []float64) (plusDM, minusDM []float64) {
	n := len(highs)
	if len(lows) < n {
		n = len(lows)
	}
	if n < 2 {
		return nil, nil
	}
	plusDM = make([]float64, 0, n-1)
	minusDM = make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		p, m := 0.0, 0.0
		if up > down && up > 0 {
			p = up
		}
		if down > up && down > 0 {
			m = down
		}
		plusDM = append(plusDM, p)
		minusDM = append(minusDM, m)
	}
	return plusDM, minusDM
}

// DMI computes +DI, −DI and DX with EMA(period) smoothing of +DM, −DM and
// the true range. Needs period+1 bars. A zero smoothed range yields 0 for
// both indicators; a zero DI sum yields DX 0.
func DMI(highs, lows, closes []float64, period int) (DMIResult, error) {
	if err := checkPeriod("DMI", period); err != nil {
		return DMIResult{}, err
	}
	if err := checkRange("DMI", highs, lows, closes); err != nil {
		return DMIResult{}, err
	}
	if err := checkLen("DMI", period, len(closes), period+1); err != nil {
		return DMIResult{}, err
	}

	plusDM, minusDM := DirectionalMovement(highs, lows)
	tr, err := TrueRange(highs, lows, closes)
	if err != nil {
		return DMIResult{}, err
	}
	sPlus, err := EMA(plusDM, period)
	if err != nil {
		return DMIResult{}, err
	}
	sMinus, err := EMA(minusDM, period)
	if err != nil {
		return DMIResult{}, err
	}
	sTR, err := EMA(tr, period)
	if err != nil {
		return DMIResult{}, err
	}

	var res DMIResult
	if sTR != 0 {
		res.PlusDI = sPlus / sTR * 100
		res.MinusDI = sMinus / sTR * 100
	}
	if sum := res.PlusDI + res.MinusDI; sum != 0 {
		res.ADX = math.Abs(res.PlusDI-res.MinusDI) / sum * 100
	}
	return res, nil
}
