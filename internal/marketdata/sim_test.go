package marketdata

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func newSimServer(t *testing.T) (*Sim, *Binance, time.Time) {
	t.Helper()
	sim := NewSim(42, time.Minute)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48*time.Hour - time.Minute)
	sim.Seed("BTCUSDT", 60000, start, end)

	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(srv.Close)
	return sim, NewBinance(BinanceConfig{BaseURL: srv.URL, RecentInterval: "1m"}), start
}

func TestSim_SeedIsContinuous(t *testing.T) {
	sim, _, _ := newSimServer(t)
	candles, err := sim.Provider().GetHistoricalData(context.Background(), "BTCUSDT", time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 48*60 {
		t.Fatalf("candles = %d, want %d", len(candles), 48*60)
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].Open != candles[i-1].Close {
			t.Fatalf("candle %d opens at %v, previous closed at %v", i, candles[i].Open, candles[i-1].Close)
		}
		if candles[i].High < candles[i].Close || candles[i].Low > candles[i].Close {
			t.Fatalf("candle %d range %v..%v excludes close %v", i, candles[i].Low, candles[i].High, candles[i].Close)
		}
	}
}

func TestSim_ServesBinanceClient(t *testing.T) {
	sim, b, start := newSimServer(t)
	ctx := context.Background()

	last, _ := sim.Provider().GetCurrentPrice(ctx, "BTCUSDT")
	price, err := b.GetCurrentPrice(ctx, "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if diff := price - last; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("price = %v, want %v", price, last)
	}

	hourly, err := b.GetHistoricalData(ctx, "BTCUSDT", start, start.Add(48*time.Hour), "1h")
	if err != nil {
		t.Fatal(err)
	}
	if len(hourly) != 48 {
		t.Fatalf("hourly candles = %d, want 48", len(hourly))
	}
	if !hourly[0].TS.Equal(start) || !hourly[47].TS.Equal(start.Add(47*time.Hour)) {
		t.Errorf("range %s..%s", hourly[0].TS, hourly[47].TS)
	}

	// minute history spans several pages
	minutes, err := b.GetHistoricalData(ctx, "BTCUSDT", start, start.Add(48*time.Hour), "1m")
	if err != nil {
		t.Fatal(err)
	}
	if len(minutes) != 48*60 {
		t.Errorf("minute candles = %d, want %d", len(minutes), 48*60)
	}

	recent, err := b.GetRecentCandles(ctx, "BTCUSDT", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 10 || recent[9].Close != minutes[len(minutes)-1].Close {
		t.Errorf("recent = %d candles, last close %v", len(recent), recent[len(recent)-1].Close)
	}
}

func TestSim_Errors(t *testing.T) {
	_, b, start := newSimServer(t)
	ctx := context.Background()

	if _, err := b.GetCurrentPrice(ctx, "NOPE"); err == nil {
		t.Error("expected error for unknown symbol")
	}
	if _, err := b.GetHistoricalData(ctx, "BTCUSDT", start, start.Add(time.Hour), "7x"); err == nil {
		t.Error("expected error for bad interval")
	}
}

func TestSim_StepAdvancesEverySymbol(t *testing.T) {
	sim := NewSim(1, time.Minute)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sim.Seed("BTCUSDT", 100, t0, t0)
	sim.Seed("ETHUSDT", 10, t0, t0)

	sim.Step(t0.Add(time.Minute + 30*time.Second))
	sim.Step(t0.Add(time.Minute + 45*time.Second)) // same bucket, ignored

	for _, sym := range sim.Symbols() {
		c, err := sim.Provider().GetRecentCandles(context.Background(), sym, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(c) != 2 || !c[1].TS.Equal(t0.Add(time.Minute)) {
			t.Errorf("%s: candles = %+v", sym, c)
		}
	}
}
