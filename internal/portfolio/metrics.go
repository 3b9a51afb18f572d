package portfolio

import (
	"math"

	"tradingbot/internal/model"
)

// Metrics summarizes a trade history. Percentages are 0..100.
//
// Drawdown and Sharpe are computed over the discrete trade sequence, not a
// time-weighted equity curve. Every ratio with an empty or zero-variance
// denominator is reported as 0.
type Metrics struct {
	CurrentBalance float64 `json:"current_balance"`
	TotalReturn    float64 `json:"total_return"` // percent of initial balance
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	WinRate        float64 `json:"win_rate"` // percent
	AverageWin     float64 `json:"average_win"`
	AverageLoss    float64 `json:"average_loss"` // negative or 0
	MaxDrawdown    float64 `json:"max_drawdown"` // percent
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// ComputeMetrics derives Metrics from an initial balance, the current cash
// balance and the ordered trade history.
func ComputeMetrics(initial, balance float64, trades []model.Trade) Metrics {
	m := Metrics{
		CurrentBalance: balance,
		TotalTrades:    len(trades),
	}
	if initial != 0 {
		m.TotalReturn = (balance - initial) / initial * 100
	}

	var winSum, lossSum float64
	var losses int
	for i := range trades {
		switch pnl := trades[i].PnL; {
		case pnl > 0:
			m.WinningTrades++
			winSum += pnl
		case pnl < 0:
			losses++
			lossSum += pnl
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if m.WinningTrades > 0 {
		m.AverageWin = winSum / float64(m.WinningTrades)
	}
	if losses > 0 {
		m.AverageLoss = lossSum / float64(losses)
	}
	m.MaxDrawdown = MaxDrawdown(initial, trades)
	m.SharpeRatio = SharpeRatio(initial, trades)
	return m
}

// MaxDrawdown returns the largest peak-to-trough drop, in percent, of the
// equity curve built by adding each trade's PnL to initial in order.
func MaxDrawdown(initial float64, trades []model.Trade) float64 {
	equity, peak, maxDD := initial, initial, 0.0
	for i := range trades {
		equity += trades[i].PnL
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

// SharpeRatio returns mean/stddev of per-trade returns (pnl/initial) with
// population variance, no annualization and no risk-free rate.
func SharpeRatio(initial float64, trades []model.Trade) float64 {
	if len(trades) == 0 || initial == 0 {
		return 0
	}
	n := float64(len(trades))
	mean := 0.0
	for i := range trades {
		mean += trades[i].PnL / initial
	}
	mean /= n

	variance := 0.0
	for i := range trades {
		d := trades[i].PnL/initial - mean
		variance += d * d
	}
	sd := math.Sqrt(variance / n)
	// identical returns can leave rounding noise instead of an exact zero
	if sd < 1e-12 || math.IsNaN(sd) {
		return 0
	}
	return mean / sd
}
