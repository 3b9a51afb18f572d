package portfolio

import (
	"errors"
	"testing"

	"tradingbot/internal/model"
)

type fakeState struct {
	open     int
	balance  float64
	drawdown float64
}

func (s fakeState) OpenPositionCount() int   { return s.open }
func (s fakeState) Balance() float64         { return s.balance }
func (s fakeState) CurrentDrawdown() float64 { return s.drawdown }

func TestCalculatePositionSize(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())

	// risk 200 over a distance of 50 → 4, below the cap of 1000
	size, err := rm.CalculatePositionSize(10000, 1000, 950)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "size", size, 4, 1e-9)

	// risk 200 over 0.1 → 2000, capped at 10000×0.1
	size, _ = rm.CalculatePositionSize(10000, 100, 99.9)
	assertClose(t, "capped size", size, 1000, 1e-9)
}

func TestCalculatePositionSize_ZeroStopDistance(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	size, err := rm.CalculatePositionSize(10000, 100, 100)
	if !errors.Is(err, ErrZeroStopDistance) || size != 0 {
		t.Fatalf("got size=%v err=%v, want 0 and ErrZeroStopDistance", size, err)
	}
}

func TestValidateTrade(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	tests := []struct {
		name   string
		size   float64
		state  fakeState
		valid  bool
		reason string
	}{
		{"ok", 500, fakeState{open: 2, balance: 10000}, true, ""},
		{"max positions exactly", 500, fakeState{open: 3, balance: 10000}, false, ReasonMaxOpenPositions},
		{"drawdown at limit is allowed", 500, fakeState{open: 0, balance: 10000, drawdown: 0.2}, true, ""},
		{"drawdown exceeded", 500, fakeState{open: 0, balance: 10000, drawdown: 0.21}, false, ReasonMaxDrawdown},
		{"size too large", 1000.01, fakeState{open: 0, balance: 10000}, false, ReasonPositionTooLarge},
		{"positions checked first", 5000, fakeState{open: 3, balance: 10000, drawdown: 0.5}, false, ReasonMaxOpenPositions},
		{"drawdown before size", 5000, fakeState{open: 0, balance: 10000, drawdown: 0.5}, false, ReasonMaxDrawdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := rm.ValidateTrade(TradeRequest{Symbol: "BTC", Size: tt.size, Price: 1}, tt.state)
			if v.Valid != tt.valid || v.Reason != tt.reason {
				t.Errorf("got %+v, want valid=%v reason=%q", v, tt.valid, tt.reason)
			}
		})
	}
}

func TestValidateTrade_AgainstPortfolio(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	p := newTestPortfolio()
	for _, s := range []string{"A", "B", "C"} {
		if _, err := p.OpenPosition(s, model.Long, 10, 1, 9, 11); err != nil {
			t.Fatal(err)
		}
	}
	v := rm.ValidateTrade(TradeRequest{Symbol: "D", Size: 1, Price: 10}, p)
	if v.Valid || v.Reason != ReasonMaxOpenPositions {
		t.Errorf("got %+v, want max positions rejection", v)
	}
}

func TestAdjustStopLoss(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())

	long := model.Position{Direction: model.Long, StopLoss: 95}
	assertClose(t, "long tightens", rm.AdjustStopLoss(long, 110, 2), 107, 1e-9)
	assertClose(t, "long never loosens", rm.AdjustStopLoss(long, 96, 2), 95, 1e-9)

	short := model.Position{Direction: model.Short, StopLoss: 105}
	assertClose(t, "short tightens", rm.AdjustStopLoss(short, 90, 2), 93, 1e-9)
	assertClose(t, "short never loosens", rm.AdjustStopLoss(short, 104, 2), 105, 1e-9)
}

func TestCalculateTakeProfit(t *testing.T) {
	rm := NewRiskManager(DefaultRiskConfig())
	assertClose(t, "long", rm.CalculateTakeProfit(100, 98, 2), 104, 1e-9)
	assertClose(t, "short", rm.CalculateTakeProfit(100, 102, 2), 96, 1e-9)
	assertClose(t, "default ratio", rm.CalculateTakeProfit(100, 98, 0), 104, 1e-9)
}

func TestRiskConfig_Validate(t *testing.T) {
	if err := DefaultRiskConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultRiskConfig()
	cfg.MaxOpenPositions = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero max positions should be rejected")
	}
}
