// Package api exposes the trading engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradingbot/internal/backtest"
	"tradingbot/internal/execution"
	"tradingbot/internal/gateway"
	"tradingbot/internal/indicator"
	"tradingbot/internal/logger"
	"tradingbot/internal/marketdata"
	"tradingbot/internal/model"
	"tradingbot/internal/monitor"
	"tradingbot/internal/portfolio"
	sqlitestore "tradingbot/internal/store/sqlite"
	"tradingbot/internal/strategy"
)

const maxBody = 1 << 20

// TradeJournal lists persisted trades, newest first.
// *sqlite.Store satisfies it.
type TradeJournal interface {
	Trades(ctx context.Context, symbol string, limit int) ([]sqlitestore.TradeRecord, error)
}

// Deps are the components the routes act on. Journal, Hub and OnBacktest
// are optional.
type Deps struct {
	Provider  model.MarketDataProvider
	Monitor   *monitor.Monitor
	Trader    *execution.Trader
	Portfolio *portfolio.Portfolio
	Journal   TradeJournal
	Hub       *gateway.Hub

	// Strategy settings used to build backtest strategies.
	StrategyKind   strategy.Kind
	StrategyConfig strategy.Config
	Library        *indicator.Library

	// Backtest holds the defaults a request overrides.
	Backtest   backtest.Config
	OnBacktest func(elapsed time.Duration, err error)

	Logger *slog.Logger
}

// Server routes HTTP requests to the engine.
type Server struct {
	d   Deps
	log *slog.Logger
	mux *http.ServeMux
}

// NewServer builds the route table.
func NewServer(d Deps) *Server {
	s := &Server{d: d, log: d.Logger, mux: http.NewServeMux()}
	if s.log == nil {
		s.log = slog.Default().With("component", "api")
	}
	if s.d.StrategyKind == "" {
		s.d.StrategyKind = strategy.KindRSIBollinger
	}
	if s.d.StrategyConfig == (strategy.Config{}) {
		s.d.StrategyConfig = strategy.DefaultConfig()
	}
	if s.d.Backtest.InitialBalance == 0 {
		s.d.Backtest = backtest.DefaultConfig()
	}

	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/price/{symbol}", s.handlePrice)
	s.mux.HandleFunc("GET /api/v1/analysis/{symbol}", s.handleAnalysis)
	s.mux.HandleFunc("POST /api/v1/order", s.handleOrder)
	s.mux.HandleFunc("GET /api/v1/strategies", s.handleStrategies)
	s.mux.HandleFunc("POST /api/v1/monitor/start", s.handleMonitorStart)
	s.mux.HandleFunc("POST /api/v1/monitor/stop", s.handleMonitorStop)
	s.mux.HandleFunc("POST /api/v1/alert", s.handleAlert)
	s.mux.HandleFunc("GET /api/v1/portfolio", s.handlePortfolio)
	s.mux.HandleFunc("GET /api/v1/trades", s.handleTrades)
	s.mux.HandleFunc("POST /api/v1/backtest", s.handleBacktest)
	if d.Hub != nil {
		d.Hub.RegisterRoutes(s.mux)
	}
	return s
}

// Handler returns the mux wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.withLogging(withCORS(s.mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.d.Monitor != nil {
		resp["monitoring"] = s.d.Monitor.Running()
	}
	if s.d.Portfolio != nil {
		resp["open_positions"] = s.d.Portfolio.OpenPositionCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	price, err := s.d.Provider.GetCurrentPrice(r.Context(), symbol)
	if err != nil {
		s.fail(w, r, providerStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "price": price})
}

const maxAnalysisLimit = 1000

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	limit := strategy.TrendLookback
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxAnalysisLimit {
			s.fail(w, r, http.StatusBadRequest, fmt.Errorf("limit must be in 1..%d", maxAnalysisLimit))
			return
		}
		limit = n
	}
	win, err := model.RecentWindow(r.Context(), s.d.Provider, symbol, limit)
	if err != nil {
		s.fail(w, r, providerStatus(err), err)
		return
	}
	o, err := strategy.Summarize(s.d.Library, s.d.StrategyConfig, win)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, strategy.ErrWarmup) {
			status = http.StatusUnprocessableEntity
		}
		s.fail(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "observations": win.Len(), "overview": o})
}

type orderRequest struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		s.fail(w, r, http.StatusBadRequest, errors.New("symbol is required"))
		return
	}
	dir, err := parseSide(req.Side)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	if req.Price <= 0 {
		req.Price, err = s.d.Provider.GetCurrentPrice(r.Context(), req.Symbol)
		if err != nil {
			s.fail(w, r, providerStatus(err), err)
			return
		}
	}

	res, err := s.d.Trader.Submit(r.Context(), req.Symbol, dir, req.Price)
	switch {
	case errors.Is(err, execution.ErrRejected):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "validation": res.Validation})
		return
	case errors.Is(err, portfolio.ErrDuplicatePosition):
		s.fail(w, r, http.StatusConflict, err)
		return
	case err != nil:
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func parseSide(side string) (model.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(side)) {
	case "BUY", "LONG":
		return model.Long, nil
	case "SELL", "SHORT":
		return model.Short, nil
	}
	return "", errors.New("side must be BUY or SELL")
}

type strategyInfo struct {
	Kind   strategy.Kind `json:"kind"`
	Name   string        `json:"name"`
	Active bool          `json:"active"`
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	list := make([]strategyInfo, 0, len(strategy.Kinds))
	for _, k := range strategy.Kinds {
		st, err := strategy.New(k, s.d.StrategyConfig, nil)
		if err != nil {
			continue
		}
		list = append(list, strategyInfo{Kind: k, Name: st.Name(), Active: k == s.d.StrategyKind})
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": list, "config": s.d.StrategyConfig})
}

type monitorRequest struct {
	Symbols []string `json:"symbols"`
}

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	symbols := make([]string, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) == 0 {
		s.fail(w, r, http.StatusBadRequest, errors.New("symbols is required"))
		return
	}
	if err := s.d.Monitor.Start(symbols); err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "started", "monitoring": s.d.Monitor.Running()})
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, _ *http.Request) {
	s.d.Monitor.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

type alertRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Type   string  `json:"type"`
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" || req.Price <= 0 {
		s.fail(w, r, http.StatusBadRequest, errors.New("symbol and a positive price are required"))
		return
	}
	typ, err := monitor.ParseAlertType(req.Type)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	a := s.d.Monitor.SetPriceAlert(req.Symbol, req.Price, typ)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Portfolio.Snapshot())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, r, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	if s.d.Journal != nil {
		recs, err := s.d.Journal.Trades(r.Context(), symbol, limit)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)
		return
	}

	// in-memory history is oldest first
	all := s.d.Portfolio.Trades()
	out := make([]model.Trade, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || all[i].Symbol == symbol {
			out = append(out, all[i])
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type backtestRequest struct {
	Symbol           string  `json:"symbol"`
	Start            day     `json:"start"`
	End              day     `json:"end"`
	Interval         string  `json:"interval"`
	Strategy         string  `json:"strategy"`
	InitialBalance   float64 `json:"initial_balance"`
	PositionFraction float64 `json:"position_fraction"`
	Warmup           *int    `json:"warmup"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	cfg := s.d.Backtest
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	cfg.Start, cfg.End = time.Time(req.Start), time.Time(req.End)
	if req.Interval != "" {
		cfg.Interval = req.Interval
	}
	if req.InitialBalance != 0 {
		cfg.InitialBalance = req.InitialBalance
	}
	if req.PositionFraction != 0 {
		cfg.PositionFraction = req.PositionFraction
	}
	if req.Warmup != nil {
		cfg.Warmup = *req.Warmup
	}

	kind := s.d.StrategyKind
	if req.Strategy != "" {
		k, err := strategy.ParseKind(req.Strategy)
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, err)
			return
		}
		kind = k
	}
	strat, err := strategy.New(kind, s.d.StrategyConfig, s.d.Library)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	sim, err := backtest.New(cfg, s.d.Provider, strat, backtest.WithLogger(s.log))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}

	began := time.Now()
	report, err := sim.Run(r.Context())
	if s.d.OnBacktest != nil {
		s.d.OnBacktest(time.Since(began), err)
	}
	if err != nil {
		var dfe *backtest.DataFetchError
		status := http.StatusInternalServerError
		if errors.As(err, &dfe) {
			status = providerStatus(dfe.Err)
		}
		s.fail(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// day accepts a date ("2006-01-02") or an RFC 3339 timestamp.
type day time.Time

func (d *day) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == "" {
		*d = day{}
		return nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		*d = day(t)
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return errors.New("dates must be YYYY-MM-DD or RFC 3339")
	}
	*d = day(t)
	return nil
}

func providerStatus(err error) int {
	switch {
	case errors.Is(err, marketdata.ErrUnknownSymbol), errors.Is(err, backtest.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		s.log.Error("request failed", append(logger.LogWithTrace(r.Context()), "path", r.URL.Path, "status", status, "error", err)...)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
