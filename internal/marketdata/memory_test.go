package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradingbot/internal/model"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func minuteCandles(symbol string, closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Symbol: symbol,
			TS:     t0.Add(time.Duration(i) * time.Minute),
			Open:   c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		}
	}
	return out
}

func TestMemory_PricesAndHistory(t *testing.T) {
	m := NewMemory()
	m.Add(minuteCandles("BTC", 10, 11, 12, 13)...)
	ctx := context.Background()

	p, err := m.GetCurrentPrice(ctx, "BTC")
	if err != nil || p != 13 {
		t.Fatalf("price = %v, %v; want 13", p, err)
	}
	m.SetPrice("BTC", 20)
	if p, _ = m.GetCurrentPrice(ctx, "BTC"); p != 20 {
		t.Errorf("override price = %v, want 20", p)
	}

	recent, _ := m.GetRecentPrices(ctx, "BTC", 2)
	if len(recent) != 2 || recent[0] != 12 || recent[1] != 13 {
		t.Errorf("recent = %v, want [12 13]", recent)
	}

	hist, _ := m.GetHistoricalData(ctx, "BTC", t0.Add(time.Minute), t0.Add(2*time.Minute), "")
	if len(hist) != 2 || hist[0].Close != 11 || hist[1].Close != 12 {
		t.Errorf("history = %+v", hist)
	}
}

func TestMemory_UnknownSymbol(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.GetCurrentPrice(ctx, "X"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("price err = %v", err)
	}
	if _, err := m.GetHistoricalData(ctx, "X", t0, time.Time{}, ""); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("history err = %v", err)
	}
	if _, err := m.GetRecentCandles(ctx, "X", 5); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("recent err = %v", err)
	}
}

func TestMemory_AddSortsOutOfOrder(t *testing.T) {
	m := NewMemory()
	c := minuteCandles("ETH", 1, 2, 3)
	m.Add(c[2], c[0], c[1])
	closes, _ := m.GetRecentPrices(context.Background(), "ETH", 0)
	if len(closes) != 3 || closes[0] != 1 || closes[2] != 3 {
		t.Errorf("closes = %v, want [1 2 3]", closes)
	}
}

func TestMemory_HistoryResamples(t *testing.T) {
	m := NewMemory()
	m.Add(minuteCandles("BTC", 10, 12, 11, 15, 14, 13)...)
	hist, err := m.GetHistoricalData(context.Background(), "BTC", t0, time.Time{}, "3m")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 {
		t.Fatalf("got %d candles, want 2", len(hist))
	}
	if hist[0].Open != 10 || hist[0].High != 13 || hist[0].Low != 9 || hist[0].Close != 11 || hist[0].Volume != 3 {
		t.Errorf("first bucket = %+v", hist[0])
	}
	if !hist[1].TS.Equal(t0.Add(3 * time.Minute)) {
		t.Errorf("second bucket ts = %v", hist[1].TS)
	}
}

func TestResample_PassThroughAndStale(t *testing.T) {
	in := minuteCandles("BTC", 1, 2, 3)
	out := Resample(in, time.Minute)
	if len(out) != 3 || out[1].Close != in[1].Close || !out[1].TS.Equal(in[1].TS) {
		t.Errorf("same-width resample changed candles: %+v", out)
	}

	late := append(minuteCandles("BTC", 1, 2, 3), model.Candle{Symbol: "BTC", TS: t0, Close: 99, High: 99, Low: 99})
	out = Resample(late, time.Minute)
	if len(out) != 3 || out[0].Close != 1 {
		t.Errorf("stale candle merged: %+v", out)
	}
}

func TestIntervalDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1m", time.Minute, true},
		{"15m", 15 * time.Minute, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"", 0, false},
		{"h", 0, false},
		{"0h", 0, false},
		{"3x", 0, false},
	}
	for _, tt := range tests {
		got, err := IntervalDuration(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("IntervalDuration(%q) = %v, %v; want %v ok=%v", tt.in, got, err, tt.want, tt.ok)
		}
	}
}
