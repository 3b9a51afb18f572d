package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradingbot/internal/model"
)

// ErrNoCandles is returned when the store holds no candles for a symbol.
var ErrNoCandles = errors.New("no stored candles")

// SaveCandles upserts candles for interval in a single transaction.
func (s *Store) SaveCandles(ctx context.Context, interval string, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare candle insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Symbol, interval, c.TS.UnixMilli(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert candle %s %v: %w", c.Symbol, c.TS, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("committed candles", "count", len(candles), "interval", interval, "took", time.Since(start))
	return nil
}

// GetHistoricalData reads candles with start <= ts <= end ordered by time.
// A zero end is unbounded.
func (s *Store) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Candle, error) {
	endMs := int64(1<<63 - 1)
	if !end.IsZero() {
		endMs = end.UnixMilli()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, symbol, interval, start.UnixMilli(), endMs)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		c := model.Candle{Symbol: symbol}
		var ts int64
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.UnixMilli(ts).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// CandleReader serves one stored interval through the MarketDataProvider
// port, so backtests and replays can run from the database.
type CandleReader struct {
	store    *Store
	interval string
}

// Reader returns a MarketDataProvider over candles stored for interval.
func (s *Store) Reader(interval string) *CandleReader {
	return &CandleReader{store: s, interval: interval}
}

// GetHistoricalData ignores the requested interval in favour of the one the
// reader was created for.
func (r *CandleReader) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, _ string) ([]model.Candle, error) {
	return r.store.GetHistoricalData(ctx, symbol, start, end, r.interval)
}

// GetCurrentPrice returns the close of the latest stored candle.
func (r *CandleReader) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	closes, err := r.GetRecentPrices(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	return closes[0], nil
}

// GetRecentPrices returns the last limit closes, oldest first.
func (r *CandleReader) GetRecentPrices(ctx context.Context, symbol string, limit int) ([]float64, error) {
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

// GetRecentCandles returns the last limit candles, oldest first.
func (r *CandleReader) GetRecentCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND interval = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, symbol, r.interval, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query recent candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		c := model.Candle{Symbol: symbol}
		var ts int64
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.UnixMilli(ts).UTC()
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("recent %s %s: %w", symbol, r.interval, ErrNoCandles)
	}
	return candles, nil
}
