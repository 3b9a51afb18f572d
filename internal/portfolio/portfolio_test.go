package portfolio

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"tradingbot/internal/model"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f", label, got, want)
	}
}

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

type memRecorder struct {
	mu     sync.Mutex
	trades []model.Trade
}

func (r *memRecorder) RecordTrade(_ context.Context, t model.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, t)
	return nil
}

func newTestPortfolio(opts ...Option) *Portfolio {
	clk := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(10000, append([]Option{WithClock(clk.Now)}, opts...)...)
}

// conserved reports balance + notional + unrealized == initial + realized + unrealized.
func conserved(t *testing.T, p *Portfolio) {
	t.Helper()
	realized := 0.0
	for _, tr := range p.Trades() {
		realized += tr.PnL
	}
	notional := 0.0
	for _, pos := range p.Positions() {
		notional += pos.Notional()
	}
	assertClose(t, "money conservation", p.Balance()+notional, p.InitialBalance()+realized, 1e-6)
}

func TestOpenPosition_DebitsNotional(t *testing.T) {
	p := newTestPortfolio()
	pos, err := p.OpenPosition("BTC", model.Long, 100, 10, 98, 103)
	if err != nil {
		t.Fatal(err)
	}
	if pos.OpenTime.IsZero() {
		t.Error("open time should be set from the clock")
	}
	assertClose(t, "balance", p.Balance(), 9000, 1e-9)
	conserved(t, p)
}

func TestOpenPosition_Duplicate(t *testing.T) {
	p := newTestPortfolio()
	if _, err := p.OpenPosition("BTC", model.Long, 100, 1, 98, 103); err != nil {
		t.Fatal(err)
	}
	_, err := p.OpenPosition("BTC", model.Short, 101, 1, 103, 98)
	if !errors.Is(err, ErrDuplicatePosition) {
		t.Fatalf("expected ErrDuplicatePosition, got %v", err)
	}
	if p.OpenPositionCount() != 1 {
		t.Errorf("open positions = %d, want 1", p.OpenPositionCount())
	}
	assertClose(t, "balance unchanged by failed open", p.Balance(), 9900, 1e-9)
}

func TestClosePosition_NoPosition(t *testing.T) {
	p := newTestPortfolio()
	if _, err := p.ClosePosition("ETH", 100); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
}

func TestClosePosition_RoundTripLong(t *testing.T) {
	rec := &memRecorder{}
	p := newTestPortfolio(WithRecorder(rec))
	if _, err := p.OpenPosition("BTC", model.Long, 100, 10, 98, 103); err != nil {
		t.Fatal(err)
	}
	tr, err := p.ClosePosition("BTC", 103)
	if err != nil {
		t.Fatal(err)
	}
	// pnl = 10 × (103-100) = 30; balance = 9000 + 1000 + 30
	assertClose(t, "pnl", tr.PnL, 30, 1e-9)
	assertClose(t, "balance", p.Balance(), 10030, 1e-9)
	if tr.Duration != time.Minute {
		t.Errorf("duration = %v, want 1m", tr.Duration)
	}
	if p.OpenPositionCount() != 0 {
		t.Error("position should be removed")
	}
	if len(rec.trades) != 1 || rec.trades[0] != tr {
		t.Errorf("recorder got %+v", rec.trades)
	}
	conserved(t, p)
}

func TestClosePosition_RoundTripShort(t *testing.T) {
	p := newTestPortfolio()
	if _, err := p.OpenPosition("ETH", model.Short, 50, 20, 51, 48); err != nil {
		t.Fatal(err)
	}
	tr, err := p.ClosePosition("ETH", 52)
	if err != nil {
		t.Fatal(err)
	}
	// pnl = 20 × (50-52) = -40; the 1000 notional comes back, not 20 × 52
	assertClose(t, "pnl", tr.PnL, -40, 1e-9)
	assertClose(t, "balance", p.Balance(), 9960, 1e-9)
	conserved(t, p)
}

func TestUpdatePositions_AutoClose(t *testing.T) {
	tests := []struct {
		name   string
		dir    model.Direction
		price  float64
		closes bool
	}{
		{"long at stop", model.Long, 98, true},
		{"long below stop", model.Long, 97, true},
		{"long at target", model.Long, 103, true},
		{"long inside", model.Long, 101, false},
		{"short at stop", model.Short, 102, true},
		{"short at target", model.Short, 97, true},
		{"short inside", model.Short, 99, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPortfolio()
			stop, target := 98.0, 103.0
			if tt.dir == model.Short {
				stop, target = 102, 97
			}
			if _, err := p.OpenPosition("BTC", tt.dir, 100, 5, stop, target); err != nil {
				t.Fatal(err)
			}
			closed := p.UpdatePositions(map[string]float64{"BTC": tt.price})
			if (len(closed) == 1) != tt.closes {
				t.Fatalf("closed %d trades, want closes=%v", len(closed), tt.closes)
			}
			if !tt.closes {
				pos, _ := p.Position("BTC")
				want := 5 * (tt.price - 100)
				if tt.dir == model.Short {
					want = -want
				}
				assertClose(t, "unrealized", pos.UnrealizedPnL, want, 1e-9)
			}
			conserved(t, p)
		})
	}
}

func TestUpdatePositions_IgnoresUnknownSymbols(t *testing.T) {
	p := newTestPortfolio()
	p.OpenPosition("BTC", model.Long, 100, 1, 98, 103)
	p.OpenPosition("ETH", model.Long, 10, 1, 9, 11)

	closed := p.UpdatePositions(map[string]float64{"ETH": 12, "SOL": 5})
	if len(closed) != 1 || closed[0].Symbol != "ETH" {
		t.Fatalf("closed = %+v, want only ETH", closed)
	}
	if _, ok := p.Position("BTC"); !ok {
		t.Error("BTC should stay open without a price")
	}
}

func TestTrailStops_Ratchets(t *testing.T) {
	p := newTestPortfolio()
	rm := NewRiskManager(DefaultRiskConfig())
	p.OpenPosition("BTC", model.Long, 100, 1, 95, 120)

	// candidate 110 - 1.5×2 = 107 > 95
	if n := p.TrailStops(map[string]float64{"BTC": 110}, map[string]float64{"BTC": 2}, rm); n != 1 {
		t.Fatalf("moved %d stops, want 1", n)
	}
	pos, _ := p.Position("BTC")
	assertClose(t, "trailed stop", pos.StopLoss, 107, 1e-9)

	// price falls back: candidate 101 < 107, stop must not loosen
	p.TrailStops(map[string]float64{"BTC": 104}, map[string]float64{"BTC": 2}, rm)
	pos, _ = p.Position("BTC")
	assertClose(t, "stop after pullback", pos.StopLoss, 107, 1e-9)
}

func TestMetrics_NoTrades(t *testing.T) {
	m := newTestPortfolio().Metrics()
	if m.WinRate != 0 || m.AverageWin != 0 || m.AverageLoss != 0 || m.SharpeRatio != 0 || m.MaxDrawdown != 0 {
		t.Errorf("degenerate metrics should be zero, got %+v", m)
	}
	assertClose(t, "balance", m.CurrentBalance, 10000, 1e-9)
}

func TestMetrics_Values(t *testing.T) {
	trades := []model.Trade{{PnL: 100}, {PnL: -300}, {PnL: 50}, {PnL: 150}}
	m := ComputeMetrics(10000, 10000, trades)

	assertClose(t, "win rate", m.WinRate, 75, 1e-9)
	assertClose(t, "avg win", m.AverageWin, 100, 1e-9)
	assertClose(t, "avg loss", m.AverageLoss, -300, 1e-9)
	// equity 10100 → 9800: (10100-9800)/10100 = 2.9703%
	assertClose(t, "max drawdown", m.MaxDrawdown, 2.970297, 1e-5)
	// returns 0.01,-0.03,0.005,0.015 mean 0 → sharpe 0
	assertClose(t, "sharpe", m.SharpeRatio, 0, 1e-9)
}

func TestSharpe_ZeroVariance(t *testing.T) {
	trades := []model.Trade{{PnL: 10}, {PnL: 10}, {PnL: 10}}
	if s := SharpeRatio(10000, trades); s != 0 {
		t.Errorf("zero-variance sharpe = %v, want 0", s)
	}
}

func TestMaxDrawdown_Cumulative(t *testing.T) {
	// 10000 → 9900 → 9800: the second loss deepens the drawdown.
	dd := MaxDrawdown(10000, []model.Trade{{PnL: -100}, {PnL: -100}})
	assertClose(t, "cumulative drawdown", dd, 2, 1e-9)
}

func TestCurrentDrawdown(t *testing.T) {
	p := newTestPortfolio()
	p.OpenPosition("BTC", model.Long, 100, 10, 90, 120)
	p.ClosePosition("BTC", 120) // +200, peak 10200
	p.OpenPosition("BTC", model.Long, 100, 10, 90, 120)
	p.ClosePosition("BTC", 90) // -100, equity 10100
	assertClose(t, "current drawdown", p.CurrentDrawdown(), 100.0/10200, 1e-9)
}

func TestSnapshot_Equity(t *testing.T) {
	p := newTestPortfolio()
	p.OpenPosition("BTC", model.Long, 100, 10, 90, 120)
	p.UpdatePositions(map[string]float64{"BTC": 105})
	s := p.Snapshot()
	assertClose(t, "equity", s.Equity, 10050, 1e-9)
	assertClose(t, "unrealized", s.UnrealizedPnL, 50, 1e-9)
	if len(s.Positions) != 1 {
		t.Errorf("positions = %d, want 1", len(s.Positions))
	}
}

func TestPortfolio_ConcurrentSymbols(t *testing.T) {
	p := newTestPortfolio()
	var wg sync.WaitGroup
	for _, sym := range []string{"A", "B", "C", "D"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := p.OpenPosition(sym, model.Long, 10, 1, 9, 11); err != nil {
					t.Error(err)
					return
				}
				if _, err := p.ClosePosition(sym, 10.5); err != nil {
					t.Error(err)
					return
				}
				_ = p.Snapshot()
			}
		}(sym)
	}
	wg.Wait()
	if got := len(p.Trades()); got != 200 {
		t.Errorf("trades = %d, want 200", got)
	}
	conserved(t, p)
}
