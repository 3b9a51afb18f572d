package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradingbot/internal/model"
	"tradingbot/internal/portfolio"
	"tradingbot/internal/strategy"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

// Simulator replays one strategy over one symbol's history.
type Simulator struct {
	cfg      Config
	provider model.MarketDataProvider
	strategy strategy.Strategy
	log      *slog.Logger
}

// New creates a Simulator. provider may be nil when only Replay is used.
func New(cfg Config, provider model.MarketDataProvider, strat strategy.Strategy, opts ...Option) (*Simulator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}
	s := &Simulator{
		cfg:      cfg,
		provider: provider,
		strategy: strat,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run fetches the configured history and replays it. A provider failure
// returns a *DataFetchError and no Report.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	if s.provider == nil {
		return Report{}, &DataFetchError{Symbol: s.cfg.Symbol, Err: fmt.Errorf("no market data provider")}
	}
	candles, err := s.provider.GetHistoricalData(ctx, s.cfg.Symbol, s.cfg.Start, s.cfg.End, s.cfg.Interval)
	if err != nil {
		return Report{}, &DataFetchError{Symbol: s.cfg.Symbol, Err: err}
	}
	if len(candles) == 0 {
		return Report{}, &DataFetchError{Symbol: s.cfg.Symbol, Err: ErrNoData}
	}
	return s.replay(ctx, candles)
}

// Replay runs the simulation over candles, which must be chronological.
func (s *Simulator) Replay(candles []model.Candle) (Report, error) {
	return s.replay(context.Background(), candles)
}

func (s *Simulator) replay(ctx context.Context, candles []model.Candle) (Report, error) {
	started := time.Now()
	window := model.WindowFromCandles(candles)

	start := s.cfg.Warmup
	if lb := s.strategy.MinLookback() - 1; lb > start {
		start = lb
	}

	balance := s.cfg.InitialBalance
	var pos *Position
	trades := make([]Trade, 0, 16)

	for i := start; i < len(candles); i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Report{}, err
			}
		}
		c := candles[i]
		price := c.Close

		analysis, err := s.strategy.Analyze(window.Prefix(i + 1))
		if err != nil {
			return Report{}, fmt.Errorf("backtest %s: analyze candle %d (%s): %w",
				s.cfg.Symbol, i, c.TS.Format(time.RFC3339), err)
		}

		if pos == nil && analysis.Signal.IsEntry() {
			dir := analysis.Signal.Direction()
			pos = &Position{
				Direction:  dir,
				EntryPrice: price,
				Notional:   balance * s.cfg.PositionFraction,
				StopLoss:   s.strategy.StopLoss(price, dir.IsLong()),
				TakeProfit: s.strategy.TakeProfit(price, dir.IsLong()),
				OpenTime:   c.TS,
			}
		}

		if pos != nil && pos.exitTriggered(price) {
			pnl := pos.pnlAt(price)
			balance += pnl
			trades = append(trades, Trade{
				Trade: model.Trade{
					Symbol:     s.cfg.Symbol,
					Direction:  pos.Direction,
					EntryPrice: pos.EntryPrice,
					ExitPrice:  price,
					Size:       pos.Notional / pos.EntryPrice,
					PnL:        pnl,
					OpenTime:   pos.OpenTime,
					CloseTime:  c.TS,
					Duration:   c.TS.Sub(pos.OpenTime),
				},
				Notional: pos.Notional,
			})
			pos = nil
		}
	}

	r := s.report(candles, balance, trades, pos)
	s.log.Info("backtest complete",
		"symbol", r.Symbol, "strategy", r.Strategy, "candles", r.Candles,
		"trades", r.TotalTrades, "win_rate", r.WinRate, "final_balance", r.FinalBalance,
		"elapsed", time.Since(started))
	return r, nil
}

func (s *Simulator) report(candles []model.Candle, balance float64, trades []Trade, open *Position) Report {
	plain := make([]model.Trade, len(trades))
	for i := range trades {
		plain[i] = trades[i].Trade
	}
	m := portfolio.ComputeMetrics(s.cfg.InitialBalance, balance, plain)
	return Report{
		Symbol:         s.cfg.Symbol,
		Strategy:       s.strategy.Name(),
		Interval:       s.cfg.Interval,
		Candles:        len(candles),
		InitialBalance: s.cfg.InitialBalance,
		TotalTrades:    m.TotalTrades,
		WinningTrades:  m.WinningTrades,
		WinRate:        m.WinRate,
		FinalBalance:   balance,
		TotalReturn:    m.TotalReturn,
		MaxDrawdown:    m.MaxDrawdown,
		SharpeRatio:    m.SharpeRatio,
		Trades:         trades,
		OpenPosition:   open,
	}
}
