// Package archive keeps candle history and backtest trade exports in Parquet
// files on disk, one file per symbol, interval and year.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradingbot/internal/model"
)

// ErrNoCandles is returned when the archive holds no candles for a symbol.
var ErrNoCandles = errors.New("no archived candles")

// CandleRecord is the on-disk candle schema.
type CandleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// TradeRecord is the on-disk schema for exported trades.
type TradeRecord struct {
	Symbol     string  `parquet:"symbol"`
	Direction  string  `parquet:"direction"`
	EntryPrice float64 `parquet:"entry_price"`
	ExitPrice  float64 `parquet:"exit_price"`
	Size       float64 `parquet:"size"`
	PnL        float64 `parquet:"pnl"`
	OpenTime   int64   `parquet:"open_time,timestamp(millisecond)"`
	CloseTime  int64   `parquet:"close_time,timestamp(millisecond)"`
}

// Archive is rooted at a data directory. Layout:
//
//	<Dir>/candles/<interval>/<SYMBOL>/<YYYY>.parquet
//	<Dir>/trades/<name>.parquet
type Archive struct {
	Dir string
}

func New(dir string) *Archive { return &Archive{Dir: dir} }

// SaveCandles merges candles into the yearly files for interval. Rows with
// the same timestamp are replaced by the incoming ones.
func (a *Archive) SaveCandles(_ context.Context, interval string, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]CandleRecord)
	for _, c := range candles {
		ts := c.TS.UTC()
		k := key{symbol: strings.ToUpper(c.Symbol), year: ts.Year()}
		groups[k] = append(groups[k], CandleRecord{
			Symbol:    k.symbol,
			Timestamp: ts.UnixMilli(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}

	for k, records := range groups {
		path := a.candlePath(interval, k.symbol, k.year)
		existing, _ := readFile[CandleRecord](path)
		if err := writeFile(path, mergeCandles(existing, records)); err != nil {
			return fmt.Errorf("archive candles %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// GetHistoricalData reads candles with start <= ts <= end in time order.
// A zero start or end is unbounded on that side.
func (a *Archive) GetHistoricalData(_ context.Context, symbol string, start, end time.Time, interval string) ([]model.Candle, error) {
	years, err := a.years(interval, symbol)
	if err != nil {
		return nil, err
	}
	var out []model.Candle
	for _, year := range years {
		if (!start.IsZero() && year < start.UTC().Year()) || (!end.IsZero() && year > end.UTC().Year()) {
			continue
		}
		records, err := readFile[CandleRecord](a.candlePath(interval, symbol, year))
		if err != nil {
			return nil, fmt.Errorf("archive read %s/%d: %w", symbol, year, err)
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if (!start.IsZero() && ts.Before(start)) || (!end.IsZero() && ts.After(end)) {
				continue
			}
			out = append(out, r.candle(ts))
		}
	}
	return out, nil
}

// Symbols lists the symbols archived for interval.
func (a *Archive) Symbols(interval string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.Dir, "candles", interval))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ExportTrades writes trades to <Dir>/trades/<name>.parquet and returns the path.
func (a *Archive) ExportTrades(name string, trades []model.Trade) (string, error) {
	records := make([]TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = TradeRecord{
			Symbol:     t.Symbol,
			Direction:  string(t.Direction),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Size:       t.Size,
			PnL:        t.PnL,
			OpenTime:   t.OpenTime.UnixMilli(),
			CloseTime:  t.CloseTime.UnixMilli(),
		}
	}
	path := filepath.Join(a.Dir, "trades", name+".parquet")
	if err := writeFile(path, records); err != nil {
		return "", fmt.Errorf("archive export trades: %w", err)
	}
	return path, nil
}

// ReadTrades loads a trade export written by ExportTrades.
func (a *Archive) ReadTrades(name string) ([]TradeRecord, error) {
	return readFile[TradeRecord](filepath.Join(a.Dir, "trades", name+".parquet"))
}

// Reader returns a MarketDataProvider over candles archived for interval.
func (a *Archive) Reader(interval string) *Reader {
	return &Reader{archive: a, interval: interval}
}

// Reader serves one archived interval through the MarketDataProvider port.
type Reader struct {
	archive  *Archive
	interval string
}

// GetHistoricalData ignores the requested interval in favour of the reader's.
func (r *Reader) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, _ string) ([]model.Candle, error) {
	return r.archive.GetHistoricalData(ctx, symbol, start, end, r.interval)
}

func (r *Reader) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	closes, err := r.GetRecentPrices(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return closes[len(closes)-1], nil
}

func (r *Reader) GetRecentPrices(ctx context.Context, symbol string, limit int) ([]float64, error) {
	candles, err := r.GetRecentCandles(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes, nil
}

// GetRecentCandles returns the last limit candles, oldest first. It reads
// yearly files newest first and stops once limit is covered.
func (r *Reader) GetRecentCandles(_ context.Context, symbol string, limit int) ([]model.Candle, error) {
	years, err := r.archive.years(r.interval, symbol)
	if err != nil {
		return nil, err
	}
	var out []model.Candle
	for i := len(years) - 1; i >= 0; i-- {
		records, err := readFile[CandleRecord](r.archive.candlePath(r.interval, symbol, years[i]))
		if err != nil {
			return nil, fmt.Errorf("archive read %s/%d: %w", symbol, years[i], err)
		}
		batch := make([]model.Candle, len(records))
		for j, rec := range records {
			batch[j] = rec.candle(time.UnixMilli(rec.Timestamp).UTC())
		}
		out = append(batch, out...)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("recent %s %s: %w", symbol, r.interval, ErrNoCandles)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r CandleRecord) candle(ts time.Time) model.Candle {
	return model.Candle{
		Symbol: r.Symbol,
		TS:     ts,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

// years lists the archived years for symbol, ascending.
func (a *Archive) years(interval, symbol string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(a.Dir, "candles", interval, strings.ToUpper(symbol)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var years []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".parquet")
		if !ok || e.IsDir() {
			continue
		}
		if y, err := strconv.Atoi(name); err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

func (a *Archive) candlePath(interval, symbol string, year int) string {
	return filepath.Join(a.Dir, "candles", interval, strings.ToUpper(symbol), strconv.Itoa(year)+".parquet")
}

func writeFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeCandles dedupes by timestamp, preferring incoming rows, and sorts.
func mergeCandles(existing, incoming []CandleRecord) []CandleRecord {
	seen := make(map[int64]CandleRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}
	merged := make([]CandleRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}
