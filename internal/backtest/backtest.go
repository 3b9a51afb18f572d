// Package backtest replays a strategy over historical candles for one
// symbol and reports the resulting trades and statistics.
//
// A run is a single synchronous pass ordered by candle index. Nothing in a
// Report depends on the wall clock: trade timestamps come from the candles,
// so identical input always yields a byte-identical Report.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"tradingbot/internal/model"
)

// DataFetchError wraps a market data failure that aborted a run.
type DataFetchError struct {
	Symbol string
	Err    error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("backtest %s: fetch historical data: %v", e.Symbol, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// ErrNoData is returned when the provider yields no candles.
var ErrNoData = errors.New("no historical data")

// Config describes one backtest run.
type Config struct {
	Symbol           string    `json:"symbol"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Interval         string    `json:"interval"`
	InitialBalance   float64   `json:"initial_balance"`
	PositionFraction float64   `json:"position_fraction"` // notional per trade as a fraction of balance
	Warmup           int       `json:"warmup"`            // candles skipped before the first decision
}

// DefaultConfig returns a config with the conventional balance, sizing and
// warm-up; Symbol and the time range are left to the caller.
func DefaultConfig() Config {
	return Config{
		Interval:         "1h",
		InitialBalance:   10000,
		PositionFraction: 0.1,
		Warmup:           100,
	}
}

func (c Config) validate() error {
	switch {
	case c.Symbol == "":
		return errors.New("backtest: symbol is required")
	case c.InitialBalance <= 0:
		return fmt.Errorf("backtest: initial balance must be positive, got %v", c.InitialBalance)
	case c.PositionFraction <= 0 || c.PositionFraction > 1:
		return fmt.Errorf("backtest: position fraction must be in (0,1], got %v", c.PositionFraction)
	case c.Warmup < 0:
		return fmt.Errorf("backtest: warmup must not be negative, got %d", c.Warmup)
	case !c.End.IsZero() && c.End.Before(c.Start):
		return fmt.Errorf("backtest: end %s before start %s", c.End, c.Start)
	}
	return nil
}

// Trade is a closed backtest trade. Notional is the cash amount committed
// at entry; Size is the equivalent quantity Notional/EntryPrice.
type Trade struct {
	model.Trade
	Notional float64 `json:"notional"`
}

// Position is the simulator's single open position.
type Position struct {
	Direction  model.Direction `json:"direction"`
	EntryPrice float64         `json:"entry_price"`
	Notional   float64         `json:"notional"`
	StopLoss   float64         `json:"stop_loss"`
	TakeProfit float64         `json:"take_profit"`
	OpenTime   time.Time       `json:"open_time"`
}

func (p *Position) pnlAt(price float64) float64 {
	if p.Direction == model.Short {
		return (p.EntryPrice - price) * p.Notional / p.EntryPrice
	}
	return (price - p.EntryPrice) * p.Notional / p.EntryPrice
}

func (p *Position) exitTriggered(price float64) bool {
	mp := model.Position{Direction: p.Direction, StopLoss: p.StopLoss, TakeProfit: p.TakeProfit}
	return mp.ExitTriggered(price)
}

// Report is the outcome of a run. Percentages are 0..100.
type Report struct {
	Symbol         string    `json:"symbol"`
	Strategy       string    `json:"strategy"`
	Interval       string    `json:"interval,omitempty"`
	Candles        int       `json:"candles"`
	InitialBalance float64   `json:"initial_balance"`
	TotalTrades    int       `json:"total_trades"`
	WinningTrades  int       `json:"winning_trades"`
	WinRate        float64   `json:"win_rate"`
	FinalBalance   float64   `json:"final_balance"`
	TotalReturn    float64   `json:"total_return"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	Trades         []Trade   `json:"trades"`
	OpenPosition   *Position `json:"open_position,omitempty"`
}
