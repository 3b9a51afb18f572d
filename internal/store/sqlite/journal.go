package sqlite

import (
	"context"
	"fmt"
	"time"

	"tradingbot/internal/model"
)

// RecordTrade appends a closed trade to the journal. It implements
// model.TradeRecorder.
func (s *Store) RecordTrade(ctx context.Context, t model.Trade) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (symbol, direction, entry_price, exit_price, size, pnl, open_time, close_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol,
		string(t.Direction),
		t.EntryPrice,
		t.ExitPrice,
		t.Size,
		t.PnL,
		t.OpenTime.UnixMilli(),
		t.CloseTime.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal %s: %w", t.Symbol, err)
	}
	return nil
}

// TradeRecord is a journaled trade with its row id.
type TradeRecord struct {
	ID int64 `json:"id"`
	model.Trade
}

// Trades returns the last limit trades, newest first. An empty symbol
// matches every symbol.
func (s *Store) Trades(ctx context.Context, symbol string, limit int) ([]TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, direction, entry_price, exit_price, size, pnl, open_time, close_time
		 FROM trades
		 WHERE (? = '' OR symbol = ?)
		 ORDER BY id DESC LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var (
			r               TradeRecord
			dir             string
			openMs, closeMs int64
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &dir, &r.EntryPrice, &r.ExitPrice,
			&r.Size, &r.PnL, &openMs, &closeMs); err != nil {
			return nil, fmt.Errorf("sqlite scan trades: %w", err)
		}
		r.Direction = model.Direction(dir)
		r.OpenTime = time.UnixMilli(openMs).UTC()
		r.CloseTime = time.UnixMilli(closeMs).UTC()
		r.Duration = r.CloseTime.Sub(r.OpenTime)
		trades = append(trades, r)
	}
	return trades, rows.Err()
}
