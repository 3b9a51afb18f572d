package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tradingbot/internal/model"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func hourly(symbol string, closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Symbol: symbol,
			TS:     t0.Add(time.Duration(i) * time.Hour),
			Open:   c, High: c + 2, Low: c - 2, Close: c, Volume: 10,
		}
	}
	return out
}

func TestStore_SaveAndReadCandles(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.SaveCandles(ctx, "1h", hourly("BTCUSDT", 100, 101, 102, 103)); err != nil {
		t.Fatal(err)
	}
	// upsert replaces, does not duplicate
	if err := s.SaveCandles(ctx, "1h", hourly("BTCUSDT", 100, 105)); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetHistoricalData(ctx, "BTCUSDT", t0, time.Time{}, "1h")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d candles, want 4", len(got))
	}
	if got[1].Close != 105 || got[3].Close != 103 {
		t.Errorf("closes = %v %v, want 105 103", got[1].Close, got[3].Close)
	}
	if !got[2].TS.Equal(t0.Add(2*time.Hour)) || got[2].High != 104 || got[2].Symbol != "BTCUSDT" {
		t.Errorf("candle = %+v", got[2])
	}

	ranged, _ := s.GetHistoricalData(ctx, "BTCUSDT", t0.Add(time.Hour), t0.Add(2*time.Hour), "1h")
	if len(ranged) != 2 {
		t.Errorf("ranged = %d candles, want 2", len(ranged))
	}
	other, _ := s.GetHistoricalData(ctx, "BTCUSDT", t0, time.Time{}, "1d")
	if len(other) != 0 {
		t.Errorf("interval filter leaked %d candles", len(other))
	}
}

func TestCandleReader_Provider(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if err := s.SaveCandles(ctx, "1h", hourly("ETHUSDT", 10, 11, 12, 13, 14)); err != nil {
		t.Fatal(err)
	}
	r := s.Reader("1h")

	var _ model.MarketDataProvider = r
	var _ model.RecentCandleProvider = r

	p, err := r.GetCurrentPrice(ctx, "ETHUSDT")
	if err != nil || p != 14 {
		t.Fatalf("price = %v, %v; want 14", p, err)
	}
	closes, _ := r.GetRecentPrices(ctx, "ETHUSDT", 3)
	if len(closes) != 3 || closes[0] != 12 || closes[2] != 14 {
		t.Errorf("recent = %v, want [12 13 14]", closes)
	}
	hist, _ := r.GetHistoricalData(ctx, "ETHUSDT", t0, time.Time{}, "ignored")
	if len(hist) != 5 {
		t.Errorf("history = %d candles, want 5", len(hist))
	}
	if _, err := r.GetCurrentPrice(ctx, "NOPE"); !errors.Is(err, ErrNoCandles) {
		t.Errorf("unknown symbol err = %v, want ErrNoCandles", err)
	}
}

func TestJournal_RecordAndList(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	var _ model.TradeRecorder = s

	trades := []model.Trade{
		{Symbol: "BTCUSDT", Direction: model.Long, EntryPrice: 100, ExitPrice: 103, Size: 10, PnL: 30,
			OpenTime: t0, CloseTime: t0.Add(time.Hour)},
		{Symbol: "ETHUSDT", Direction: model.Short, EntryPrice: 50, ExitPrice: 52, Size: 4, PnL: -8,
			OpenTime: t0, CloseTime: t0.Add(2 * time.Hour)},
		{Symbol: "BTCUSDT", Direction: model.Short, EntryPrice: 103, ExitPrice: 101, Size: 1, PnL: 2,
			OpenTime: t0.Add(3 * time.Hour), CloseTime: t0.Add(4 * time.Hour)},
	}
	for _, tr := range trades {
		if err := s.RecordTrade(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.Trades(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].PnL != 2 || all[2].PnL != 30 {
		t.Fatalf("all trades = %+v", all)
	}
	if all[2].Duration != time.Hour || all[2].Direction != model.Long {
		t.Errorf("first trade = %+v", all[2])
	}

	btc, _ := s.Trades(ctx, "BTCUSDT", 1)
	if len(btc) != 1 || btc[0].ExitPrice != 101 {
		t.Errorf("btc trades = %+v", btc)
	}
}
