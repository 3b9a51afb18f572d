package strategy

import "fmt"

// Config holds every strategy threshold. It is passed by value and never
// mutated after construction.
type Config struct {
	RSIPeriod  int     `yaml:"rsi_period" json:"rsi_period"`
	Overbought float64 `yaml:"overbought" json:"overbought"`
	Oversold   float64 `yaml:"oversold" json:"oversold"`

	BBPeriod int     `yaml:"bb_period" json:"bb_period"`
	BBStdDev float64 `yaml:"bb_std_dev" json:"bb_std_dev"`

	MACDFast   int `yaml:"macd_fast" json:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow" json:"macd_slow"`
	MACDSignal int `yaml:"macd_signal" json:"macd_signal"`

	DMIPeriod    int     `yaml:"dmi_period" json:"dmi_period"`
	DMIThreshold float64 `yaml:"dmi_threshold" json:"dmi_threshold"`

	STPeriod     int     `yaml:"supertrend_period" json:"supertrend_period"`
	STMultiplier float64 `yaml:"supertrend_multiplier" json:"supertrend_multiplier"`

	// ATRPeriod sizes the ATR reported with range windows for trailing stops.
	ATRPeriod int `yaml:"atr_period" json:"atr_period"`

	StopLossPct   float64 `yaml:"stop_loss" json:"stop_loss"`
	TakeProfitPct float64 `yaml:"take_profit" json:"take_profit"`

	// MinLookback is the warm-up length before signals are trusted.
	MinLookback int `yaml:"min_lookback" json:"min_lookback"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:     14,
		Overbought:    70,
		Oversold:      30,
		BBPeriod:      20,
		BBStdDev:      2,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		DMIPeriod:     14,
		DMIThreshold:  25,
		STPeriod:      10,
		STMultiplier:  3,
		ATRPeriod:     14,
		StopLossPct:   0.02,
		TakeProfitPct: 0.03,
		MinLookback:   100,
	}
}

// Validate rejects inconsistent thresholds.
func (c Config) Validate() error {
	for name, p := range map[string]int{
		"rsi_period": c.RSIPeriod, "bb_period": c.BBPeriod,
		"macd_fast": c.MACDFast, "macd_slow": c.MACDSlow, "macd_signal": c.MACDSignal,
		"dmi_period": c.DMIPeriod, "supertrend_period": c.STPeriod,
		"atr_period": c.ATRPeriod,
	} {
		if p <= 0 {
			return fmt.Errorf("strategy config: %s must be positive, got %d", name, p)
		}
	}
	if c.MACDFast >= c.MACDSlow {
		return fmt.Errorf("strategy config: macd_fast (%d) must be < macd_slow (%d)", c.MACDFast, c.MACDSlow)
	}
	if c.Oversold < 0 || c.Overbought > 100 || c.Oversold >= c.Overbought {
		return fmt.Errorf("strategy config: need 0 <= oversold < overbought <= 100, got %.1f/%.1f", c.Oversold, c.Overbought)
	}
	if c.BBStdDev <= 0 || c.STMultiplier <= 0 {
		return fmt.Errorf("strategy config: band multipliers must be positive")
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 || c.TakeProfitPct <= 0 {
		return fmt.Errorf("strategy config: stop_loss must be in (0,1) and take_profit positive")
	}
	if c.MinLookback < 0 {
		return fmt.Errorf("strategy config: min_lookback must not be negative")
	}
	return nil
}
