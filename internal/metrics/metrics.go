// Package metrics exposes Prometheus metrics and a health endpoint for the
// trading engine.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tradingbot/internal/model"
	"tradingbot/internal/monitor"
)

// Metrics holds all Prometheus metrics for the engine. It implements
// monitor.Observer and execution.Observer.
type Metrics struct {
	// Monitor
	TicksTotal   *prometheus.CounterVec // labels: symbol
	TickErrors   *prometheus.CounterVec // labels: symbol
	TickDuration prometheus.Histogram
	SignalsTotal *prometheus.CounterVec // labels: symbol, signal
	AlertsTotal  *prometheus.CounterVec // labels: symbol, type

	// Event bus backpressure
	EventDropsTotal      *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: subscriber

	// Indicator cache
	CacheHits   *prometheus.CounterVec // labels: indicator
	CacheMisses *prometheus.CounterVec // labels: indicator

	// Trading
	PositionsOpened *prometheus.CounterVec // labels: direction
	TradesRejected  *prometheus.CounterVec // labels: reason
	TradesClosed    *prometheus.CounterVec // labels: outcome=win|loss
	RealizedPnL     prometheus.Gauge

	// Backtests
	BacktestsTotal   *prometheus.CounterVec // labels: status=ok|error
	BacktestDuration prometheus.Histogram

	reg  prometheus.Registerer
	last *lastTick
}

// New registers all metrics with reg and returns them. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_ticks_total",
			Help: "Monitor ticks completed, by symbol",
		}, []string{"symbol"}),
		TickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_tick_errors_total",
			Help: "Monitor ticks that failed (fetch or analysis), by symbol",
		}, []string{"symbol"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradingbot_tick_duration_seconds",
			Help:    "Latency of one monitor tick (fetch + analyze + publish)",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_signals_total",
			Help: "Entry signals published by the monitor",
		}, []string{"symbol", "signal"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_price_alerts_total",
			Help: "Price alerts fired",
		}, []string{"symbol", "type"}),

		EventDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_event_drops_total",
			Help: "Events dropped by the monitor bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradingbot_channel_saturation_pct",
			Help: "Subscriber channel fill percentage (len/cap * 100)",
		}, []string{"subscriber"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_indicator_cache_hits_total",
			Help: "Indicator results served from cache",
		}, []string{"indicator"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_indicator_cache_misses_total",
			Help: "Indicator results computed",
		}, []string{"indicator"}),

		PositionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_positions_opened_total",
			Help: "Positions opened by the trader",
		}, []string{"direction"}),
		TradesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_trades_rejected_total",
			Help: "Entries refused by the risk manager",
		}, []string{"reason"}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_trades_closed_total",
			Help: "Closed trades by outcome",
		}, []string{"outcome"}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradingbot_realized_pnl",
			Help: "Cumulative realized profit and loss",
		}),

		BacktestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradingbot_backtests_total",
			Help: "Backtests run, by status",
		}, []string{"status"}),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradingbot_backtest_duration_seconds",
			Help:    "Wall time of a backtest including data fetch",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),

		reg:  reg,
		last: &lastTick{},
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickErrors,
		m.TickDuration,
		m.SignalsTotal,
		m.AlertsTotal,
		m.EventDropsTotal,
		m.ChannelSaturationPct,
		m.CacheHits,
		m.CacheMisses,
		m.PositionsOpened,
		m.TradesRejected,
		m.TradesClosed,
		m.RealizedPnL,
		m.BacktestsTotal,
		m.BacktestDuration,
	)
	return m
}

// TickDone implements monitor.Observer.
func (m *Metrics) TickDone(symbol string, elapsed time.Duration, err error) {
	m.TicksTotal.WithLabelValues(symbol).Inc()
	m.TickDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.TickErrors.WithLabelValues(symbol).Inc()
		return
	}
	m.last.set(time.Now())
}

// LastTick returns the time of the last successful tick.
func (m *Metrics) LastTick() time.Time { return m.last.get() }

// ObserveEvent counts signal and alert events. Register it with
// Monitor.OnEvent.
func (m *Metrics) ObserveEvent(ev monitor.Event) {
	switch ev.Kind {
	case monitor.EventSignal:
		m.SignalsTotal.WithLabelValues(ev.Symbol, string(ev.Signal)).Inc()
	case monitor.EventPriceAlert:
		typ := ""
		if ev.Alert != nil {
			typ = string(ev.Alert.Type)
		}
		m.AlertsTotal.WithLabelValues(ev.Symbol, typ).Inc()
	}
}

// PositionOpened implements execution.Observer.
func (m *Metrics) PositionOpened(pos model.Position) {
	m.PositionsOpened.WithLabelValues(string(pos.Direction)).Inc()
}

// TradeRejected implements execution.Observer.
func (m *Metrics) TradeRejected(_ string, reason string) {
	m.TradesRejected.WithLabelValues(reason).Inc()
}

// TradeClosed implements execution.Observer.
func (m *Metrics) TradeClosed(t model.Trade) {
	outcome := "loss"
	if t.Win() {
		outcome = "win"
	}
	m.TradesClosed.WithLabelValues(outcome).Inc()
	m.RealizedPnL.Add(t.PnL)
}

// CacheHit and CacheMiss match indicator.Library's OnHit/OnMiss hooks.
func (m *Metrics) CacheHit(kind string)  { m.CacheHits.WithLabelValues(kind).Inc() }
func (m *Metrics) CacheMiss(kind string) { m.CacheMisses.WithLabelValues(kind).Inc() }

// EventDropped matches monitor.Bus.OnDrop.
func (m *Metrics) EventDropped(subscriberIdx int, _ monitor.Event) {
	m.EventDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
}

// ObserveBacktest records one backtest run.
func (m *Metrics) ObserveBacktest(elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BacktestsTotal.WithLabelValues(status).Inc()
	m.BacktestDuration.Observe(elapsed.Seconds())
}

// PortfolioSource is the read-only portfolio view exported as gauges.
type PortfolioSource interface {
	Balance() float64
	OpenPositionCount() int
	CurrentDrawdown() float64
}

// RegisterPortfolio exports balance, open positions and drawdown of p as
// gauges evaluated at scrape time.
func (m *Metrics) RegisterPortfolio(p PortfolioSource) {
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tradingbot_portfolio_balance",
			Help: "Cash balance of the live portfolio",
		}, p.Balance),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tradingbot_open_positions",
			Help: "Open positions in the live portfolio",
		}, func() float64 { return float64(p.OpenPositionCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tradingbot_portfolio_drawdown_ratio",
			Help: "Realized drawdown from peak equity (0.1 = 10%)",
		}, p.CurrentDrawdown),
	)
}

// RegisterBreaker exports a circuit breaker state (0=closed, 1=open,
// 2=half-open) evaluated at scrape time.
func (m *Metrics) RegisterBreaker(name string, state func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "tradingbot_circuit_breaker_state",
		Help:        "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		ConstLabels: prometheus.Labels{"breaker": name},
	}, func() float64 { return float64(state()) }))
}

// SampleBus records bus subscriber saturation every interval until ctx is
// cancelled.
func (m *Metrics) SampleBus(ctx context.Context, bus *monitor.Bus, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleBus(bus)
		}
	}
}

func (m *Metrics) sampleBus(bus *monitor.Bus) {
	for i, st := range bus.ChannelStats() {
		if st.Cap == 0 {
			continue
		}
		m.ChannelSaturationPct.WithLabelValues(strconv.Itoa(i)).Set(float64(st.Len) / float64(st.Cap) * 100)
	}
}
