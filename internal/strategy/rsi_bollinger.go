package strategy

import (
	"tradingbot/internal/indicator"
	"tradingbot/internal/model"
)

// RSIBollinger is the default mean-reversion strategy.
//
// BUY:  RSI < oversold and last price below the lower band.
// SELL: RSI > overbought and last price above the upper band.
// MACD is computed for observability only.
type RSIBollinger struct {
	base
}

func (s *RSIBollinger) Name() string { return "RSI_Bollinger" }
func (s *RSIBollinger) Kind() Kind   { return KindRSIBollinger }

func (s *RSIBollinger) Analyze(w model.PriceWindow) (Analysis, error) {
	if err := s.checkWindow(s.Name(), w, false); err != nil {
		return Analysis{}, err
	}
	cfg := s.cfg
	rsi, err := s.lib.RSI(w.Closes, cfg.RSIPeriod)
	if err != nil {
		return Analysis{}, err
	}
	bands, err := s.lib.Bollinger(w.Closes, cfg.BBPeriod, cfg.BBStdDev)
	if err != nil {
		return Analysis{}, err
	}
	macd, err := s.lib.MACD(w.Closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	if err != nil {
		return Analysis{}, err
	}

	last := w.Last()
	return Analysis{
		Signal: rsiBollingerSignal(cfg, rsi, last, bands),
		Price:  last,
		Indicators: Indicators{
			RSI:   &rsi,
			Bands: &bands,
			MACD:  &macd,
			ATR:   s.atr(w),
		},
	}, nil
}

func rsiBollingerSignal(cfg Config, rsi, price float64, bands indicator.Bands) model.Action {
	switch {
	case rsi < cfg.Oversold && price < bands.Lower:
		return model.ActionBuy
	case rsi > cfg.Overbought && price > bands.Upper:
		return model.ActionSell
	}
	return model.ActionHold
}
