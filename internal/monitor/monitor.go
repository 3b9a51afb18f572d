// Package monitor runs one polling loop per symbol: fetch prices, analyze
// with the symbol's own strategy, check price alerts and publish events.
//
// Loops are independent. A failing symbol backs off to ErrorInterval and
// keeps polling without delaying any other symbol. Stop is observed at the
// next iteration boundary; a tick already in flight runs to completion,
// bounded by FetchTimeout.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tradingbot/internal/model"
	"tradingbot/internal/strategy"
)

// Config holds the polling schedule.
type Config struct {
	Interval      time.Duration `yaml:"interval" json:"interval"`             // wait after a successful tick
	ErrorInterval time.Duration `yaml:"error_interval" json:"error_interval"` // wait after a failed tick
	FetchTimeout  time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`   // bound on one tick
	RecentLimit   int           `yaml:"recent_limit" json:"recent_limit"`     // observations per window
}

// DefaultConfig polls every 5s and backs off to 10s after an error.
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		ErrorInterval: 10 * time.Second,
		FetchTimeout:  8 * time.Second,
		RecentLimit:   100,
	}
}

// Validate rejects non-positive durations and limits.
func (c Config) Validate() error {
	if c.Interval <= 0 || c.ErrorInterval <= 0 || c.FetchTimeout <= 0 {
		return fmt.Errorf("monitor config: intervals and timeout must be positive")
	}
	if c.RecentLimit <= 0 {
		return fmt.Errorf("monitor config: recent_limit must be positive, got %d", c.RecentLimit)
	}
	return nil
}

// Observer receives per-tick outcomes (metrics).
type Observer interface {
	TickDone(symbol string, elapsed time.Duration, err error)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithObserver registers a tick observer.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// WithBus publishes events on b instead of a private bus.
func WithBus(b *Bus) Option {
	return func(m *Monitor) { m.bus = b }
}

// Monitor polls market data for a set of symbols.
type Monitor struct {
	provider model.MarketDataProvider
	factory  strategy.Factory
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	observer Observer
	bus      *Bus

	mu         sync.Mutex
	ctx        context.Context // nil while stopped
	cancel     context.CancelFunc
	running    map[string]bool
	strategies map[string]strategy.Strategy
	wg         sync.WaitGroup

	alertMu sync.RWMutex
	alerts  map[string][]Alert

	cbMu      sync.RWMutex
	callbacks []func(Event)
}

// New creates a stopped Monitor.
func New(provider model.MarketDataProvider, factory strategy.Factory, cfg Config, opts ...Option) (*Monitor, error) {
	if provider == nil || factory == nil {
		return nil, errors.New("monitor: provider and strategy factory are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		provider:   provider,
		factory:    factory,
		cfg:        cfg,
		log:        slog.Default(),
		now:        time.Now,
		running:    make(map[string]bool),
		strategies: make(map[string]strategy.Strategy),
		alerts:     make(map[string][]Alert),
	}
	for _, o := range opts {
		o(m)
	}
	if m.bus == nil {
		m.bus = NewBus()
	}
	return m, nil
}

// Subscribe returns a channel receiving every event. Slow subscribers lose
// events rather than block the loops.
func (m *Monitor) Subscribe(buf int) <-chan Event { return m.bus.Subscribe(buf) }

// Unsubscribe stops delivery to ch and closes it.
func (m *Monitor) Unsubscribe(ch <-chan Event) { m.bus.Unsubscribe(ch) }

// Bus returns the event bus.
func (m *Monitor) Bus() *Bus { return m.bus }

// OnEvent registers a callback invoked synchronously for every event.
func (m *Monitor) OnEvent(fn func(Event)) {
	m.cbMu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.cbMu.Unlock()
}

// Start begins polling every symbol not already being polled. Calling it
// again with the same symbols is a no-op.
func (m *Monitor) Start(symbols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		// loops from a previous run finish their in-flight tick first
		m.wg.Wait()
	}

	for _, sym := range symbols {
		if sym == "" || m.running[sym] {
			continue
		}
		strat, err := m.strategyLocked(sym)
		if err != nil {
			return err
		}
		if m.cancel == nil {
			m.ctx, m.cancel = context.WithCancel(context.Background())
		}
		m.running[sym] = true
		m.wg.Add(1)
		go m.loop(m.ctx, sym, strat)
		m.log.Info("monitoring started", "symbol", sym)
	}
	return nil
}

// Stop cancels every loop. It does not wait; use Wait for that. Stopping
// a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.cancel = nil
	m.ctx = nil
	m.running = make(map[string]bool)
	m.log.Info("monitoring stopped")
}

// Wait blocks until every loop has exited.
func (m *Monitor) Wait() { m.wg.Wait() }

// Running returns the symbols currently polled, sorted.
func (m *Monitor) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.running))
	for s := range m.running {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Strategy returns the strategy instance for symbol, creating it on first use.
func (m *Monitor) Strategy(symbol string) (strategy.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strategyLocked(symbol)
}

func (m *Monitor) strategyLocked(symbol string) (strategy.Strategy, error) {
	if s, ok := m.strategies[symbol]; ok {
		return s, nil
	}
	s, err := m.factory(symbol)
	if err != nil {
		return nil, fmt.Errorf("monitor %s: build strategy: %w", symbol, err)
	}
	m.strategies[symbol] = s
	return s, nil
}

// SetPriceAlert registers an alert. Alerts are append-only; registering the
// same alert twice makes it fire twice.
func (m *Monitor) SetPriceAlert(symbol string, price float64, typ AlertType) Alert {
	if typ == "" {
		typ = AlertAbove
	}
	a := Alert{Symbol: symbol, Price: price, Type: typ}
	m.alertMu.Lock()
	m.alerts[symbol] = append(m.alerts[symbol], a)
	m.alertMu.Unlock()
	return a
}

// Alerts returns a copy of the alerts registered for symbol.
func (m *Monitor) Alerts(symbol string) []Alert {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()
	return append([]Alert(nil), m.alerts[symbol]...)
}

func (m *Monitor) loop(ctx context.Context, symbol string, strat strategy.Strategy) {
	defer m.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			return
		}

		// The tick outlives Stop; only FetchTimeout bounds it.
		tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.FetchTimeout)
		_, err := m.tick(tickCtx, symbol, strat)
		cancel()

		wait := m.cfg.Interval
		if err != nil {
			wait = m.cfg.ErrorInterval
			m.log.Warn("monitor tick failed", "symbol", symbol, "error", err, "retry_in", wait)
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// Tick runs one iteration for symbol: fetch, analyze, check alerts and
// publish events.
func (m *Monitor) Tick(ctx context.Context, symbol string) (strategy.Analysis, error) {
	strat, err := m.Strategy(symbol)
	if err != nil {
		return strategy.Analysis{}, err
	}
	return m.tick(ctx, symbol, strat)
}

func (m *Monitor) tick(ctx context.Context, symbol string, strat strategy.Strategy) (a strategy.Analysis, err error) {
	started := time.Now()
	defer func() {
		if m.observer != nil {
			m.observer.TickDone(symbol, time.Since(started), err)
		}
	}()

	price, err := m.provider.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return strategy.Analysis{}, fmt.Errorf("monitor %s: current price: %w", symbol, err)
	}
	w, err := model.RecentWindow(ctx, m.provider, symbol, m.cfg.RecentLimit)
	if err != nil {
		return strategy.Analysis{}, fmt.Errorf("monitor %s: recent prices: %w", symbol, err)
	}
	a, err = strat.Analyze(w)
	if err != nil {
		return strategy.Analysis{}, fmt.Errorf("monitor %s: analyze: %w", symbol, err)
	}

	now := m.now()
	m.checkAlerts(symbol, price, now)
	m.emit(Event{Kind: EventUpdate, Symbol: symbol, Price: price, Signal: a.Signal, Analysis: &a, Timestamp: now})
	if a.Signal != model.ActionHold {
		m.emit(Event{Kind: EventSignal, Symbol: symbol, Price: price, Signal: a.Signal, Analysis: &a, Timestamp: now})
	}
	return a, nil
}

func (m *Monitor) checkAlerts(symbol string, price float64, now time.Time) {
	m.alertMu.RLock()
	alerts := m.alerts[symbol]
	m.alertMu.RUnlock()

	for _, al := range alerts {
		if !al.Triggered(price) {
			continue
		}
		m.emit(Event{
			Kind:      EventPriceAlert,
			Symbol:    symbol,
			Price:     price,
			Alert:     &AlertHit{Alert: al, CurrentPrice: price},
			Timestamp: now,
		})
	}
}

func (m *Monitor) emit(ev Event) {
	m.bus.Publish(ev)
	m.cbMu.RLock()
	cbs := m.callbacks
	m.cbMu.RUnlock()
	for _, fn := range cbs {
		fn(ev)
	}
}
