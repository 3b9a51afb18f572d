package marketdata

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"tradingbot/internal/model"
)

// Sim generates random-walk candles and serves them in the Binance REST
// shape, so the engine can run without exchange access.
type Sim struct {
	mem  *Memory
	base time.Duration

	mu   sync.Mutex
	rng  *rand.Rand
	last map[string]model.Candle
}

// NewSim creates a simulator producing one candle of width base per Step.
func NewSim(seed int64, base time.Duration) *Sim {
	if base <= 0 {
		base = time.Minute
	}
	return &Sim{
		mem:  NewMemory(),
		base: base,
		rng:  rand.New(rand.NewSource(seed)),
		last: make(map[string]model.Candle),
	}
}

// Provider exposes the generated candles directly.
func (s *Sim) Provider() *Memory { return s.mem }

// Symbols returns the simulated symbols, sorted.
func (s *Sim) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.last))
	for sym := range s.last {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Seed adds symbol starting at price and backfills candles from from to to.
func (s *Sim) Seed(symbol string, price float64, from, to time.Time) {
	from = from.UTC().Truncate(s.base)
	s.mu.Lock()
	s.last[symbol] = model.Candle{Symbol: symbol, TS: from.Add(-s.base), Close: price}
	s.mu.Unlock()
	var batch []model.Candle
	for ts := from; !ts.After(to); ts = ts.Add(s.base) {
		if c, ok := s.next(symbol, ts); ok {
			batch = append(batch, c)
		}
	}
	s.mem.Add(batch...)
}

// Step appends the candle opening at now to every symbol.
func (s *Sim) Step(now time.Time) {
	ts := now.UTC().Truncate(s.base)
	var batch []model.Candle
	for _, sym := range s.Symbols() {
		if c, ok := s.next(sym, ts); ok {
			batch = append(batch, c)
		}
	}
	s.mem.Add(batch...)
}

// Run steps every base interval until ctx is cancelled.
func (s *Sim) Run(ctx context.Context) {
	ticker := time.NewTicker(s.base)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Step(now)
		}
	}
}

// next generates the candle opening at ts, or reports false when ts is not
// after the symbol's last candle.
func (s *Sim) next(symbol string, ts time.Time) (model.Candle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.last[symbol]
	if !ts.After(prev.TS) {
		return model.Candle{}, false
	}
	open := prev.Close
	closePx := walkPrice(s.rng, open)
	c := model.Candle{
		Symbol: symbol,
		TS:     ts,
		Open:   open,
		High:   math.Max(open, closePx) * (1 + s.rng.Float64()*0.0005),
		Low:    math.Min(open, closePx) * (1 - s.rng.Float64()*0.0005),
		Close:  closePx,
		Volume: float64(s.rng.Intn(100) + 1),
	}
	s.last[symbol] = c
	return c, true
}

// walkPrice moves price by up to ±0.1%.
func walkPrice(rng *rand.Rand, price float64) float64 {
	pct := (rng.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

// Handler serves /api/v3/ticker/price and /api/v3/klines.
func (s *Sim) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/ticker/price", s.handlePrice)
	mux.HandleFunc("GET /api/v3/klines", s.handleKlines)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		simJSON(w, http.StatusOK, map[string]any{"status": "ok", "symbols": s.Symbols()})
	})
	return mux
}

func (s *Sim) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	price, err := s.mem.GetCurrentPrice(r.Context(), symbol)
	if err != nil {
		simError(w, -1121, "Invalid symbol.")
		return
	}
	simJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "price": formatPx(price)})
}

func (s *Sim) handleKlines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol, interval := q.Get("symbol"), q.Get("interval")
	if _, err := IntervalDuration(interval); err != nil {
		simError(w, -1120, "Invalid interval.")
		return
	}
	limit := 500
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > klinesMaxLimit {
			simError(w, -1100, "Illegal characters found in parameter 'limit'.")
			return
		}
		limit = n
	}
	var start, end time.Time
	if v := q.Get("startTime"); v != "" {
		ms, _ := strconv.ParseInt(v, 10, 64)
		start = time.UnixMilli(ms)
	}
	if v := q.Get("endTime"); v != "" {
		ms, _ := strconv.ParseInt(v, 10, 64)
		end = time.UnixMilli(ms)
	}

	candles, err := s.mem.GetHistoricalData(r.Context(), symbol, start, end, interval)
	if err != nil {
		simError(w, -1121, "Invalid symbol.")
		return
	}
	if len(candles) > limit {
		if start.IsZero() {
			candles = candles[len(candles)-limit:]
		} else {
			candles = candles[:limit]
		}
	}

	tf, _ := IntervalDuration(interval)
	rows := make([][]any, len(candles))
	for i, c := range candles {
		rows[i] = []any{
			c.TS.UnixMilli(),
			formatPx(c.Open), formatPx(c.High), formatPx(c.Low), formatPx(c.Close),
			formatPx(c.Volume),
			c.TS.Add(tf).UnixMilli() - 1,
		}
	}
	simJSON(w, http.StatusOK, rows)
}

func formatPx(v float64) string { return strconv.FormatFloat(v, 'f', 8, 64) }

func simError(w http.ResponseWriter, code int, msg string) {
	simJSON(w, http.StatusBadRequest, map[string]any{"code": code, "msg": msg})
}

func simJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
