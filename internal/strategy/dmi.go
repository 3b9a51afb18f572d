package strategy

import (
	"tradingbot/internal/indicator"
	"tradingbot/internal/model"
)

// DMI follows strong trends: when the directional index reaches the
// threshold it buys if +DI leads and sells if −DI leads.
type DMI struct {
	base
}

func (s *DMI) Name() string { return "DMI" }
func (s *DMI) Kind() Kind   { return KindDMI }

func (s *DMI) Analyze(w model.PriceWindow) (Analysis, error) {
	if err := s.checkWindow(s.Name(), w, true); err != nil {
		return Analysis{}, err
	}
	dmi, err := s.lib.DMI(w.Highs, w.Lows, w.Closes, s.cfg.DMIPeriod)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Signal:     dmiSignal(s.cfg, dmi),
		Price:      w.Last(),
		Indicators: Indicators{DMI: &dmi, ATR: s.atr(w)},
	}, nil
}

func dmiSignal(cfg Config, r indicator.DMIResult) model.Action {
	if r.ADX < cfg.DMIThreshold {
		return model.ActionHold
	}
	switch {
	case r.PlusDI > r.MinusDI:
		return model.ActionBuy
	case r.MinusDI > r.PlusDI:
		return model.ActionSell
	}
	return model.ActionHold
}
