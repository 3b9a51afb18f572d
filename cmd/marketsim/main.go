// cmd/marketsim serves simulated market data in the Binance REST shape so
// the engine and backtests can run without exchange access. Point the bot at
// it with BINANCE_BASE_URL=http://localhost:9001.
//
// Config (env vars):
//
//	SIM_ADDR     listen address (default ":9001")
//	SIM_SYMBOLS  comma-separated SYMBOL:PRICE pairs (default "BTCUSDT:60000,ETHUSDT:3000")
//	SIM_HISTORY  backfilled history (default "720h")
//	SIM_SEED     random seed (default: current time)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tradingbot/internal/logger"
	"tradingbot/internal/marketdata"
)

func main() {
	log := logger.Init("marketsim", logger.Options{})

	addr := envOrDefault("SIM_ADDR", ":9001")
	history, err := time.ParseDuration(envOrDefault("SIM_HISTORY", "720h"))
	if err != nil {
		log.Error("invalid SIM_HISTORY", "error", err)
		os.Exit(2)
	}
	seed := time.Now().UnixNano()
	if v := os.Getenv("SIM_SEED"); v != "" {
		if seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			log.Error("invalid SIM_SEED", "error", err)
			os.Exit(2)
		}
	}

	sim := marketdata.NewSim(seed, time.Minute)
	now := time.Now().UTC()
	for sym, price := range parseSymbols(log, envOrDefault("SIM_SYMBOLS", "BTCUSDT:60000,ETHUSDT:3000")) {
		sim.Seed(sym, price, now.Add(-history), now)
	}
	if len(sim.Symbols()) == 0 {
		log.Error("no symbols configured via SIM_SYMBOLS")
		os.Exit(2)
	}
	log.Info("history generated", "symbols", sim.Symbols(), "history", history)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go sim.Run(ctx)

	srv := &http.Server{Addr: addr, Handler: sim.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func parseSymbols(log *slog.Logger, s string) map[string]float64 {
	out := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		seg := strings.SplitN(part, ":", 2)
		if len(seg) != 2 {
			log.Warn("skipping invalid symbol entry", "entry", part)
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(seg[1]), 64)
		if err != nil || price <= 0 {
			log.Warn("skipping invalid symbol price", "entry", part)
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(seg[0]))] = price
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
