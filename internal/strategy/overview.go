package strategy

import (
	"tradingbot/internal/indicator"
	"tradingbot/internal/model"
)

// TrendLookback is the window length AnalyzeTrend needs.
const TrendLookback = 200

// Overview is a strategy-independent technical summary of a window.
type Overview struct {
	Price          float64                 `json:"price"`
	RSI            float64                 `json:"rsi"`
	Bands          indicator.Bands         `json:"bollinger"`
	MACD           indicator.MACDResult    `json:"macd"`
	Momentum       int                     `json:"momentum"`
	ATR            *float64                `json:"atr,omitempty"`
	HighVolatility bool                    `json:"high_volatility"`
	Trend          *indicator.TrendSummary `json:"trend,omitempty"`
}

// Summarize computes the Overview of w with cfg's periods. The trend
// summary is left out for windows shorter than TrendLookback, the ATR for
// windows without high/low data.
func Summarize(lib *indicator.Library, cfg Config, w model.PriceWindow) (Overview, error) {
	b := base{cfg: cfg, lib: lib, lookback: maxInt(cfg.RSIPeriod+1, cfg.BBPeriod, cfg.MACDSlow+cfg.MACDSignal-1)}
	if err := b.checkWindow("overview", w, false); err != nil {
		return Overview{}, err
	}
	rsi, err := lib.RSI(w.Closes, cfg.RSIPeriod)
	if err != nil {
		return Overview{}, err
	}
	bands, err := lib.Bollinger(w.Closes, cfg.BBPeriod, cfg.BBStdDev)
	if err != nil {
		return Overview{}, err
	}
	macd, err := lib.MACD(w.Closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	if err != nil {
		return Overview{}, err
	}

	o := Overview{
		Price:    w.Last(),
		RSI:      rsi,
		Bands:    bands,
		MACD:     macd,
		Momentum: indicator.MomentumScore(rsi, macd),
		ATR:      b.atr(w),
	}
	var atr float64
	if o.ATR != nil {
		atr = *o.ATR
	}
	o.HighVolatility = indicator.HighVolatility(bands, atr)
	if w.Len() >= TrendLookback {
		trend, err := indicator.AnalyzeTrend(w.Closes)
		if err != nil {
			return Overview{}, err
		}
		o.Trend = &trend
	}
	return o, nil
}
