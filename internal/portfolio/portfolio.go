// Package portfolio tracks balance, open positions and trade history, and
// the risk rules that gate new positions.
//
// Money is conserved: balance plus the notional of open positions plus
// their unrealized PnL always equals the initial balance plus realized PnL
// plus unrealized PnL. Opening debits the notional, closing credits it back
// together with the realized PnL.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tradingbot/internal/model"
)

var (
	// ErrDuplicatePosition is returned when a symbol already has a position.
	ErrDuplicatePosition = errors.New("position already exists")

	// ErrNoPosition is returned when closing a symbol without a position.
	ErrNoPosition = errors.New("no position")
)

// Option configures a Portfolio.
type Option func(*Portfolio)

// WithClock overrides time.Now for open/close timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Portfolio) { p.now = now }
}

// WithRecorder forwards every closed trade to r.
func WithRecorder(r model.TradeRecorder) Option {
	return func(p *Portfolio) { p.recorders = append(p.recorders, r) }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(p *Portfolio) { p.log = l }
}

// Portfolio tracks all open positions and the closed-trade history.
// All methods are safe for concurrent use; aggregate reads are snapshots.
type Portfolio struct {
	mu        sync.RWMutex
	initial   float64
	balance   float64
	positions map[string]*model.Position // key = symbol
	trades    []model.Trade

	// realized equity curve: initial + cumulative pnl
	equity     float64
	peakEquity float64

	now       func() time.Time
	recorders []model.TradeRecorder
	log       *slog.Logger
}

// New creates an empty Portfolio holding initialBalance in cash.
func New(initialBalance float64, opts ...Option) *Portfolio {
	p := &Portfolio{
		initial:    initialBalance,
		balance:    initialBalance,
		positions:  make(map[string]*model.Position),
		trades:     make([]model.Trade, 0, 64),
		equity:     initialBalance,
		peakEquity: initialBalance,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// OpenPosition debits size×price and records a new position for symbol.
func (p *Portfolio) OpenPosition(symbol string, dir model.Direction, price, size, stopLoss, takeProfit float64) (model.Position, error) {
	if dir != model.Long && dir != model.Short {
		return model.Position{}, fmt.Errorf("open %s: invalid direction %q", symbol, dir)
	}
	if price <= 0 || size <= 0 {
		return model.Position{}, fmt.Errorf("open %s: price and size must be positive (price=%v size=%v)", symbol, price, size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.positions[symbol]; ok {
		return model.Position{}, fmt.Errorf("open %s: %w", symbol, ErrDuplicatePosition)
	}
	pos := &model.Position{
		Symbol:     symbol,
		Direction:  dir,
		EntryPrice: price,
		Size:       size,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		OpenTime:   p.now(),
	}
	p.positions[symbol] = pos
	p.balance -= size * price

	p.log.Info("position opened",
		"symbol", symbol, "direction", dir, "price", price, "size", size,
		"stop_loss", stopLoss, "take_profit", takeProfit, "balance", p.balance)
	return *pos, nil
}

// ClosePosition closes symbol at price, credits the committed notional plus
// PnL and appends the resulting Trade. Crediting notional rather than
// size×exit price keeps the balance equal to initial plus realized PnL.
func (p *Portfolio) ClosePosition(symbol string, price float64) (model.Trade, error) {
	p.mu.Lock()
	t, err := p.closeLocked(symbol, price)
	p.mu.Unlock()
	if err != nil {
		return model.Trade{}, err
	}
	p.record(t)
	return t, nil
}

func (p *Portfolio) closeLocked(symbol string, price float64) (model.Trade, error) {
	pos, ok := p.positions[symbol]
	if !ok {
		return model.Trade{}, fmt.Errorf("close %s: %w", symbol, ErrNoPosition)
	}
	pnl := pos.PnLAt(price)
	p.balance += pos.Notional() + pnl

	closed := p.now()
	t := model.Trade{
		Symbol:     symbol,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Size:       pos.Size,
		PnL:        pnl,
		OpenTime:   pos.OpenTime,
		CloseTime:  closed,
		Duration:   closed.Sub(pos.OpenTime),
	}
	p.trades = append(p.trades, t)
	delete(p.positions, symbol)

	p.equity += pnl
	if p.equity > p.peakEquity {
		p.peakEquity = p.equity
	}

	p.log.Info("position closed",
		"symbol", symbol, "direction", t.Direction, "entry", t.EntryPrice,
		"exit", price, "pnl", pnl, "balance", p.balance)
	return t, nil
}

func (p *Portfolio) record(t model.Trade) {
	for _, r := range p.recorders {
		if err := r.RecordTrade(context.Background(), t); err != nil {
			p.log.Warn("trade recorder failed", "symbol", t.Symbol, "error", err)
		}
	}
}

// UpdatePositions marks every position with a known price to market and
// closes those whose stop-loss or take-profit was crossed. Returns the
// trades closed, ordered by symbol.
func (p *Portfolio) UpdatePositions(prices map[string]float64) []model.Trade {
	p.mu.Lock()
	symbols := make([]string, 0, len(p.positions))
	for s := range p.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var closed []model.Trade
	for _, s := range symbols {
		price, ok := prices[s]
		if !ok || price <= 0 {
			continue
		}
		pos := p.positions[s]
		pos.UnrealizedPnL = pos.PnLAt(price)
		if !pos.ExitTriggered(price) {
			continue
		}
		t, err := p.closeLocked(s, price)
		if err != nil {
			continue
		}
		closed = append(closed, t)
	}
	p.mu.Unlock()

	for _, t := range closed {
		p.record(t)
	}
	return closed
}

// TrailStops ratchets the stop of every position that has both a price and
// an ATR value, using rm's trailing rule. Returns the number of stops moved.
func (p *Portfolio) TrailStops(prices, atrs map[string]float64, rm *RiskManager) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	moved := 0
	for s, pos := range p.positions {
		price, ok := prices[s]
		atr, ok2 := atrs[s]
		if !ok || !ok2 {
			continue
		}
		if stop := rm.AdjustStopLoss(*pos, price, atr); stop != pos.StopLoss {
			p.log.Debug("stop trailed", "symbol", s, "from", pos.StopLoss, "to", stop)
			pos.StopLoss = stop
			moved++
		}
	}
	return moved
}

// Balance returns the cash balance.
func (p *Portfolio) Balance() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balance
}

// InitialBalance returns the starting balance.
func (p *Portfolio) InitialBalance() float64 { return p.initial }

// OpenPositionCount returns the number of open positions.
func (p *Portfolio) OpenPositionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.positions)
}

// CurrentDrawdown returns the fractional drop of realized equity from its
// peak (0.1 = 10%).
func (p *Portfolio) CurrentDrawdown() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.peakEquity <= 0 {
		return 0
	}
	return (p.peakEquity - p.equity) / p.peakEquity
}

// Position returns the open position for symbol.
func (p *Portfolio) Position(symbol string) (model.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// Positions returns a snapshot of all positions ordered by symbol.
func (p *Portfolio) Positions() []model.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]model.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		result = append(result, *pos)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result
}

// Trades returns a copy of the trade history.
func (p *Portfolio) Trades() []model.Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Trade, len(p.trades))
	copy(cp, p.trades)
	return cp
}

// Snapshot is a point-in-time view of the whole portfolio.
type Snapshot struct {
	Balance       float64          `json:"balance"`
	Equity        float64          `json:"equity"`
	UnrealizedPnL float64          `json:"unrealized_pnl"`
	Positions     []model.Position `json:"positions"`
	Metrics       Metrics          `json:"metrics"`
}

// Snapshot returns balance, equity, positions and metrics read under one lock.
func (p *Portfolio) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Balance:   p.balance,
		Equity:    p.balance,
		Positions: make([]model.Position, 0, len(p.positions)),
	}
	for _, pos := range p.positions {
		s.Positions = append(s.Positions, *pos)
		s.Equity += pos.Notional() + pos.UnrealizedPnL
		s.UnrealizedPnL += pos.UnrealizedPnL
	}
	sort.Slice(s.Positions, func(i, j int) bool { return s.Positions[i].Symbol < s.Positions[j].Symbol })
	s.Metrics = ComputeMetrics(p.initial, p.balance, p.trades)
	return s
}

// Metrics returns the performance statistics of the trade history.
func (p *Portfolio) Metrics() Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ComputeMetrics(p.initial, p.balance, p.trades)
}
