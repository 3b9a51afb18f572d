package indicator

// TrendSummary compares the last price with its 20/50/200 period SMAs.
type TrendSummary struct {
	ShortTerm  bool    `json:"short_term"`  // above SMA(20)
	MediumTerm bool    `json:"medium_term"` // above SMA(50)
	LongTerm   bool    `json:"long_term"`   // above SMA(200)
	Strength   float64 `json:"strength"`    // weighted 1/2/3, normalized to 0..1
}

// AnalyzeTrend needs at least 200 prices.
func AnalyzeTrend(prices []float64) (TrendSummary, error) {
	sma20, err := SMA(prices, 20)
	if err != nil {
		return TrendSummary{}, err
	}
	sma50, err := SMA(prices, 50)
	if err != nil {
		return TrendSummary{}, err
	}
	sma200, err := SMA(prices, 200)
	if err != nil {
		return TrendSummary{}, err
	}
	last := prices[len(prices)-1]
	s := TrendSummary{
		ShortTerm:  last > sma20,
		MediumTerm: last > sma50,
		LongTerm:   last > sma200,
	}
	score := 0.0
	if s.ShortTerm {
		score++
	}
	if s.MediumTerm {
		score += 2
	}
	if s.LongTerm {
		score += 3
	}
	s.Strength = score / 6
	return s, nil
}

// MomentumScore combines RSI zones and the MACD histogram sign into a
// score clamped to [-3, 3]. Positive values lean bullish.
func MomentumScore(rsi float64, macd MACDResult) int {
	score := 0
	switch {
	case rsi > 70:
		score -= 2
	case rsi < 30:
		score += 2
	case rsi > 60:
		score--
	case rsi < 40:
		score++
	}
	if macd.Histogram > 0 {
		score++
	} else {
		score--
	}
	if score > 3 {
		return 3
	}
	if score < -3 {
		return -3
	}
	return score
}

// HighVolatility flags a window whose band width exceeds 5% or whose ATR
// exceeds 2% of the middle band.
func HighVolatility(b Bands, atr float64) bool {
	return b.Width() > 0.05 || atr > b.Middle*0.02
}
