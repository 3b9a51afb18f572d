// Package execution turns monitor signals into orders.
//
// The Trader receives events from the live monitor, sizes and validates
// entries through the RiskManager, places orders through an OrderGateway
// and keeps the Portfolio in step with fills and price updates.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tradingbot/internal/model"
	"tradingbot/internal/monitor"
	"tradingbot/internal/portfolio"
	"tradingbot/internal/strategy"
)

// ErrRejected is returned by Submit when the risk checks refuse a trade.
var ErrRejected = errors.New("trade rejected")

// StrategySource returns the strategy instance that trades symbol.
// *monitor.Monitor satisfies it.
type StrategySource interface {
	Strategy(symbol string) (strategy.Strategy, error)
}

// Observer is notified of trading decisions (metrics, notifications).
type Observer interface {
	PositionOpened(pos model.Position)
	TradeRejected(symbol, reason string)
	TradeClosed(t model.Trade)
}

// Option configures a Trader.
type Option func(*Trader)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(t *Trader) { t.log = l }
}

// WithObserver adds an observer. Observers are called synchronously.
func WithObserver(o Observer) Option {
	return func(t *Trader) { t.observers = append(t.observers, o) }
}

// Trader executes monitor signals against a portfolio.
type Trader struct {
	pf         *portfolio.Portfolio
	risk       *portfolio.RiskManager
	gw         model.OrderGateway
	strategies StrategySource
	observers  []Observer
	log        *slog.Logger
}

// NewTrader creates a Trader.
func NewTrader(pf *portfolio.Portfolio, risk *portfolio.RiskManager, gw model.OrderGateway, strategies StrategySource, opts ...Option) *Trader {
	t := &Trader{
		pf:         pf,
		risk:       risk,
		gw:         gw,
		strategies: strategies,
		log:        slog.Default().With("component", "trader"),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Result describes an accepted entry.
type Result struct {
	Position   model.Position       `json:"position"`
	Receipt    model.OrderReceipt   `json:"receipt"`
	Validation portfolio.Validation `json:"validation"`
}

// Run consumes monitor events and handles them.
// Blocks until ctx is cancelled or events is closed.
func (t *Trader) Run(ctx context.Context, events <-chan monitor.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Handle(ctx, ev)
		}
	}
}

// Handle reacts to one event: signals open positions, updates mark them to
// market and close those whose exit levels were crossed.
func (t *Trader) Handle(ctx context.Context, ev monitor.Event) {
	switch ev.Kind {
	case monitor.EventSignal:
		dir := ev.Signal.Direction()
		if dir == "" {
			return
		}
		if _, err := t.Submit(ctx, ev.Symbol, dir, ev.Price); err != nil {
			switch {
			case errors.Is(err, ErrRejected), errors.Is(err, portfolio.ErrDuplicatePosition):
				t.log.Debug("signal not traded", "symbol", ev.Symbol, "signal", ev.Signal, "reason", err)
			default:
				t.log.Error("signal execution failed", "symbol", ev.Symbol, "signal", ev.Signal, "error", err)
			}
		}
	case monitor.EventUpdate:
		var atr float64
		if ev.Analysis != nil && ev.Analysis.Indicators.ATR != nil {
			atr = *ev.Analysis.Indicators.ATR
		}
		t.mark(ctx, ev.Symbol, ev.Price, atr)
	}
}

// Submit opens a position in direction dir at price. Stop and target come
// from the symbol's strategy, the size from the RiskManager capped at what
// the cash balance can pay for.
func (t *Trader) Submit(ctx context.Context, symbol string, dir model.Direction, price float64) (Result, error) {
	if price <= 0 {
		return Result{}, fmt.Errorf("submit %s: price must be positive, got %v", symbol, price)
	}
	if _, open := t.pf.Position(symbol); open {
		return Result{}, fmt.Errorf("submit %s: %w", symbol, portfolio.ErrDuplicatePosition)
	}
	strat, err := t.strategies.Strategy(symbol)
	if err != nil {
		return Result{}, fmt.Errorf("submit %s: %w", symbol, err)
	}
	long := dir.IsLong()
	stop := strat.StopLoss(price, long)
	target := strat.TakeProfit(price, long)

	balance := t.pf.Balance()
	size, err := t.risk.CalculatePositionSize(balance, price, stop)
	if err != nil {
		return Result{}, fmt.Errorf("submit %s: %w", symbol, err)
	}
	if affordable := balance / price; size > affordable {
		size = affordable
	}

	v := t.risk.ValidateTrade(portfolio.TradeRequest{Symbol: symbol, Direction: dir, Price: price, Size: size}, t.pf)
	if v.Valid && size <= 0 {
		v = portfolio.Validation{Reason: "Insufficient balance"}
	}
	if !v.Valid {
		t.log.Info("trade rejected", "symbol", symbol, "direction", dir, "price", price, "size", size, "reason", v.Reason)
		for _, o := range t.observers {
			o.TradeRejected(symbol, v.Reason)
		}
		return Result{Validation: v}, fmt.Errorf("submit %s: %w: %s", symbol, ErrRejected, v.Reason)
	}

	receipt, err := t.gw.PlaceOrder(ctx, model.OrderRequest{
		Symbol:     symbol,
		Quantity:   size,
		IsBuy:      long,
		Price:      price,
		StopLoss:   stop,
		TakeProfit: target,
	})
	if err != nil {
		return Result{Validation: v}, fmt.Errorf("submit %s: place order: %w", symbol, err)
	}
	fill, qty := receipt.FillPrice, receipt.Quantity
	if fill <= 0 {
		fill = price
	}
	if qty <= 0 {
		qty = size
	}

	pos, err := t.pf.OpenPosition(symbol, dir, fill, qty, stop, target)
	if err != nil {
		return Result{Receipt: receipt, Validation: v}, fmt.Errorf("submit %s: %w", symbol, err)
	}
	for _, o := range t.observers {
		o.PositionOpened(pos)
	}
	return Result{Position: pos, Receipt: receipt, Validation: v}, nil
}

// mark trails symbol's stop when atr is positive, updates the position with
// price and places exit orders for the positions the portfolio closed.
func (t *Trader) mark(ctx context.Context, symbol string, price, atr float64) {
	prices := map[string]float64{symbol: price}
	if atr > 0 {
		t.pf.TrailStops(prices, map[string]float64{symbol: atr}, t.risk)
	}
	closed := t.pf.UpdatePositions(prices)
	for _, tr := range closed {
		_, err := t.gw.PlaceOrder(ctx, model.OrderRequest{
			Symbol:   tr.Symbol,
			Quantity: tr.Size,
			IsBuy:    !tr.Direction.IsLong(),
			Price:    tr.ExitPrice,
		})
		if err != nil {
			t.log.Error("exit order failed", "symbol", tr.Symbol, "error", err)
		}
		for _, o := range t.observers {
			o.TradeClosed(tr)
		}
	}
}
