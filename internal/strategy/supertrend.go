package strategy

import (
	"tradingbot/internal/indicator"
	"tradingbot/internal/model"
)

// SuperTrend exposes the per-index trend sequence through Trend. Analyze
// turns a flip on the last index into a signal via FlipSignal.
type SuperTrend struct {
	base
}

func (s *SuperTrend) Name() string { return "SuperTrend" }
func (s *SuperTrend) Kind() Kind   { return KindSuperTrend }

// Trend returns the SuperTrend sequence for the whole window.
func (s *SuperTrend) Trend(w model.PriceWindow) (indicator.SuperTrendResult, error) {
	if !w.HasRange() {
		return indicator.SuperTrendResult{}, ErrMissingRange
	}
	return s.lib.SuperTrend(w.Highs, w.Lows, w.Closes, s.cfg.STPeriod, s.cfg.STMultiplier)
}

func (s *SuperTrend) Analyze(w model.PriceWindow) (Analysis, error) {
	if err := s.checkWindow(s.Name(), w, true); err != nil {
		return Analysis{}, err
	}
	res, err := s.Trend(w)
	if err != nil {
		return Analysis{}, err
	}
	point := TrendPoint{Up: res.LastUp(), Flipped: res.Flipped()}
	if n := res.Len(); n > 0 {
		point.Value = res.Value[n-1]
	}
	return Analysis{
		Signal:     FlipSignal(res),
		Price:      w.Last(),
		Indicators: Indicators{SuperTrend: &point, ATR: s.atr(w)},
	}, nil
}

// FlipSignal returns BUY when the trend turned up on the last index, SELL
// when it turned down and HOLD otherwise.
func FlipSignal(res indicator.SuperTrendResult) model.Action {
	if !res.Flipped() {
		return model.ActionHold
	}
	if res.LastUp() {
		return model.ActionBuy
	}
	return model.ActionSell
}
