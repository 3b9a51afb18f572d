package marketdata

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradingbot/internal/model"
)

const (
	defaultBinanceURL = "https://api.binance.com"
	klinesMaxLimit    = 1000
)

// BinanceConfig configures the public REST client. No credentials are
// needed: only unauthenticated market data endpoints are used.
type BinanceConfig struct {
	BaseURL        string        // default: https://api.binance.com
	Timeout        time.Duration // default: 10s
	RecentInterval string        // candle interval for recent windows, default 1h
}

// Binance implements model.MarketDataProvider and
// model.RecentCandleProvider over the Binance spot REST API.
type Binance struct {
	baseURL        string
	recentInterval string
	httpClient     *http.Client
	log            *slog.Logger
}

// NewBinance creates a Binance client.
func NewBinance(cfg BinanceConfig) *Binance {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBinanceURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RecentInterval == "" {
		cfg.RecentInterval = "1h"
	}
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &Binance{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		recentInterval: cfg.RecentInterval,
		httpClient:     &http.Client{Transport: tr, Timeout: cfg.Timeout},
		log:            slog.Default().With("component", "binance"),
	}
}

// codeInvalidSymbol is Binance's error code for a symbol it does not list.
const codeInvalidSymbol = -1121

// apiError is the error body Binance returns on 4xx/5xx.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (b *Binance) get(ctx context.Context, path string, q url.Values, out any) error {
	reqURL := b.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("GET %s: read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Msg != "" {
			if ae.Code == codeInvalidSymbol {
				return fmt.Errorf("GET %s: %s: %w", path, ae.Msg, ErrUnknownSymbol)
			}
			return fmt.Errorf("GET %s: status %d: %s (code %d)", path, resp.StatusCode, ae.Msg, ae.Code)
		}
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("GET %s: couldn't parse JSON response: %w", path, err)
	}
	return nil
}

// GetCurrentPrice returns the last traded price from /api/v3/ticker/price.
func (b *Binance) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	var t struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := b.get(ctx, "/api/v3/ticker/price", url.Values{"symbol": {symbol}}, &t); err != nil {
		return 0, err
	}
	p, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker %s: bad price %q: %w", symbol, t.Price, err)
	}
	return p, nil
}

// GetHistoricalData pages through /api/v3/klines until end is covered.
func (b *Binance) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Candle, error) {
	if interval == "" {
		interval = "1h"
	}
	if end.IsZero() {
		end = time.Now()
	}
	var out []model.Candle
	from := start
	for {
		q := url.Values{
			"symbol":    {symbol},
			"interval":  {interval},
			"startTime": {strconv.FormatInt(from.UnixMilli(), 10)},
			"endTime":   {strconv.FormatInt(end.UnixMilli(), 10)},
			"limit":     {strconv.Itoa(klinesMaxLimit)},
		}
		page, err := b.klines(ctx, symbol, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < klinesMaxLimit {
			break
		}
		from = page[len(page)-1].TS.Add(time.Millisecond)
		if !from.Before(end) {
			break
		}
	}
	b.log.Debug("historical data fetched", "symbol", symbol, "interval", interval, "candles", len(out))
	return out, nil
}

// GetRecentCandles returns the last limit candles at the recent interval.
func (b *Binance) GetRecentCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > klinesMaxLimit {
		limit = klinesMaxLimit
	}
	q := url.Values{
		"symbol":   {symbol},
		"interval": {b.recentInterval},
		"limit":    {strconv.Itoa(limit)},
	}
	return b.klines(ctx, symbol, q)
}

// GetRecentPrices returns the closes of GetRecentCandles.
func (b *Binance) GetRecentPrices(ctx context.Context, symbol string, limit int) ([]float64, error) {
	candles, err := b.GetRecentCandles(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes, nil
}

// klines fetches and decodes one page. Each row is
// [openTime, open, high, low, close, volume, closeTime, ...] with prices
// encoded as strings.
func (b *Binance) klines(ctx context.Context, symbol string, q url.Values) ([]model.Candle, error) {
	var rows [][]json.RawMessage
	if err := b.get(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, err
	}
	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseKline(symbol, row)
		if err != nil {
			return nil, fmt.Errorf("kline %s[%d]: %w", symbol, i, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func parseKline(symbol string, row []json.RawMessage) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("short row (%d fields)", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return model.Candle{}, fmt.Errorf("open time: %w", err)
	}
	var f [5]float64
	for i := range f {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		f[i] = v
	}
	return model.Candle{
		Symbol: symbol,
		TS:     time.UnixMilli(openMs).UTC(),
		Open:   f[0],
		High:   f[1],
		Low:    f[2],
		Close:  f[3],
		Volume: f[4],
	}, nil
}
