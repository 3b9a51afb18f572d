// Package strategy turns price windows into BUY/SELL/HOLD decisions.
//
// A Strategy is a closed set of variants (RSIBollinger, DMI, SuperTrend)
// built on the indicator library. Strategies hold only immutable
// configuration, so one instance may analyze any number of windows, but the
// live monitor still gives every symbol its own instance.
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"tradingbot/internal/indicator"
	"tradingbot/internal/model"
)

var (
	// ErrWarmup is returned by Analyze when the window is shorter than
	// MinLookback.
	ErrWarmup = errors.New("window shorter than strategy lookback")

	// ErrMissingRange is returned by range-based strategies for windows
	// without high/low data.
	ErrMissingRange = errors.New("window has no high/low data")
)

// Kind identifies a strategy variant.
type Kind string

const (
	KindRSIBollinger Kind = "rsi_bollinger"
	KindDMI          Kind = "dmi"
	KindSuperTrend   Kind = "supertrend"
)

// Kinds lists every variant in a stable order.
var Kinds = []Kind{KindRSIBollinger, KindDMI, KindSuperTrend}

// ParseKind accepts the canonical names plus a few common spellings.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rsi_bollinger", "rsi-bollinger", "rsibollinger", "default":
		return KindRSIBollinger, nil
	case "dmi", "adx":
		return KindDMI, nil
	case "supertrend", "super_trend", "super-trend":
		return KindSuperTrend, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Strategy is the interface every variant implements.
type Strategy interface {
	// Name returns a human-readable name.
	Name() string

	// Kind returns the variant tag.
	Kind() Kind

	// MinLookback is the shortest window Analyze accepts.
	MinLookback() int

	// Analyze derives a signal from the window. Returns ErrWarmup for
	// windows shorter than MinLookback.
	Analyze(w model.PriceWindow) (Analysis, error)

	// StopLoss and TakeProfit return fixed percentage exits from entry.
	StopLoss(entry float64, isLong bool) float64
	TakeProfit(entry float64, isLong bool) float64
}

// Analysis is a signal plus the indicator values that produced it.
type Analysis struct {
	Signal     model.Action `json:"signal"`
	Price      float64      `json:"price"`
	Indicators Indicators   `json:"indicators"`
}

// Indicators carries whichever indicator values a strategy computed.
type Indicators struct {
	RSI        *float64              `json:"rsi,omitempty"`
	Bands      *indicator.Bands      `json:"bollinger,omitempty"`
	MACD       *indicator.MACDResult `json:"macd,omitempty"`
	DMI        *indicator.DMIResult  `json:"dmi,omitempty"`
	SuperTrend *TrendPoint           `json:"supertrend,omitempty"`

	// ATR is set whenever the window has high/low data and is long enough.
	ATR *float64 `json:"atr,omitempty"`
}

// TrendPoint is the SuperTrend state at the last index of a window.
type TrendPoint struct {
	Up      bool    `json:"up"`
	Value   float64 `json:"value"`
	Flipped bool    `json:"flipped"`
}

// Factory builds a fresh Strategy for a symbol.
type Factory func(symbol string) (Strategy, error)

// New builds the strategy variant kind. lib may be nil.
func New(kind Kind, cfg Config, lib *indicator.Library) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := base{cfg: cfg, lib: lib}
	switch kind {
	case KindRSIBollinger:
		b.lookback = maxInt(cfg.MinLookback, cfg.RSIPeriod+1, cfg.BBPeriod, cfg.MACDSlow+cfg.MACDSignal-1)
		return &RSIBollinger{base: b}, nil
	case KindDMI:
		b.lookback = maxInt(cfg.MinLookback, cfg.DMIPeriod+1)
		return &DMI{base: b}, nil
	case KindSuperTrend:
		b.lookback = maxInt(cfg.MinLookback, cfg.STPeriod+2)
		return &SuperTrend{base: b}, nil
	}
	return nil, fmt.Errorf("strategy: unknown kind %q", kind)
}

// NewFactory returns a Factory producing kind with cfg. The library (and
// therefore its cache) is shared; keys never collide across symbols.
func NewFactory(kind Kind, cfg Config, lib *indicator.Library) Factory {
	return func(string) (Strategy, error) {
		return New(kind, cfg, lib)
	}
}

// base holds what every variant shares.
type base struct {
	cfg      Config
	lib      *indicator.Library
	lookback int
}

func (b *base) MinLookback() int { return b.lookback }

func (b *base) StopLoss(entry float64, isLong bool) float64 {
	if isLong {
		return entry * (1 - b.cfg.StopLossPct)
	}
	return entry * (1 + b.cfg.StopLossPct)
}

func (b *base) TakeProfit(entry float64, isLong bool) float64 {
	if isLong {
		return entry * (1 + b.cfg.TakeProfitPct)
	}
	return entry * (1 - b.cfg.TakeProfitPct)
}

func (b *base) checkWindow(name string, w model.PriceWindow, needRange bool) error {
	if w.Len() < b.lookback {
		return fmt.Errorf("%s: have %d observations, need %d: %w", name, w.Len(), b.lookback, ErrWarmup)
	}
	if needRange && !w.HasRange() {
		return fmt.Errorf("%s: %w", name, ErrMissingRange)
	}
	return nil
}

// atr returns ATR(ATRPeriod) over w, or nil for windows without range data
// or too short for the period.
func (b *base) atr(w model.PriceWindow) *float64 {
	if !w.HasRange() || w.Len() < b.cfg.ATRPeriod+1 {
		return nil
	}
	v, err := b.lib.ATR(w.Highs, w.Lows, w.Closes, b.cfg.ATRPeriod)
	if err != nil {
		return nil
	}
	return &v
}

func maxInt(vs ...int) int {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
