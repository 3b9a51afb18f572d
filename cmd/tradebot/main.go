// cmd/tradebot runs the live engine: it polls market data for the configured
// symbols, turns strategy signals into paper trades, journals closed trades
// in SQLite and serves the HTTP API, the WebSocket stream and /metrics.
//
// Usage:
//
//	go run ./cmd/tradebot --config=config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tradingbot/config"
	"tradingbot/internal/api"
	"tradingbot/internal/cache"
	"tradingbot/internal/execution"
	"tradingbot/internal/gateway"
	"tradingbot/internal/indicator"
	"tradingbot/internal/logger"
	"tradingbot/internal/marketdata"
	"tradingbot/internal/metrics"
	"tradingbot/internal/monitor"
	"tradingbot/internal/notification"
	"tradingbot/internal/portfolio"
	sqlitestore "tradingbot/internal/store/sqlite"
	"tradingbot/internal/strategy"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.Init("tradebot", cfg.LoggerOptions())
	log.Info("starting", "symbols", cfg.Symbols, "strategy", cfg.StrategyKind())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	goRun := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	// ---- Metrics + health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	health := metrics.NewHealthStatus()

	// ---- Indicator cache ----
	var store cache.Cache
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedis(cfg.RedisConfig())
		if err != nil {
			log.Error("redis unavailable", "addr", cfg.Cache.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		m.RegisterBreaker("redis", func() int { return int(rc.BreakerState()) })
		health.AddCheck("redis", func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() })
		store = rc
	} else {
		mem := cache.NewMemory()
		goRun(func() { mem.Run(ctx, time.Minute) })
		store = mem
	}
	lib := indicator.NewLibrary(store, cfg.Cache.TTL)
	lib.OnHit = m.CacheHit
	lib.OnMiss = m.CacheMiss

	// ---- Market data ----
	provider := marketdata.NewBinance(cfg.BinanceProvider())
	health.AddCheck("binance", func(ctx context.Context) error {
		_, err := provider.GetCurrentPrice(ctx, cfg.Symbols[0])
		return err
	})

	// ---- Notifications ----
	notifiers := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramBotToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID))
	}
	fwd := notification.NewForwarder(notifiers, 256)
	goRun(func() { fwd.Run(ctx) })

	// ---- Portfolio + journal ----
	recorders := []portfolio.Option{portfolio.WithRecorder(fwd)}
	var journal *sqlitestore.Store
	if cfg.Storage.SQLitePath != "" {
		journal, err = sqlitestore.Open(cfg.Storage.SQLitePath)
		if err != nil {
			log.Error("sqlite open failed", "path", cfg.Storage.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer journal.Close()
		health.AddCheck("sqlite", journal.Ping)
		recorders = append(recorders, portfolio.WithRecorder(journal))
	}
	pf := portfolio.New(cfg.InitialBalance, recorders...)
	m.RegisterPortfolio(pf)

	// ---- Monitor ----
	bus := monitor.NewBus()
	bus.OnDrop = m.EventDropped
	factory := strategy.NewFactory(cfg.StrategyKind(), cfg.Strategy.Config, lib)
	mon, err := monitor.New(provider, factory, cfg.Monitor, monitor.WithBus(bus), monitor.WithObserver(m))
	if err != nil {
		log.Error("monitor init failed", "error", err)
		os.Exit(1)
	}
	mon.OnEvent(m.ObserveEvent)
	mon.OnEvent(fwd.ObserveEvent)
	health.SetMonitor(mon.Running, m.LastTick)
	goRun(func() { m.SampleBus(ctx, bus, 15*time.Second) })

	// ---- Paper trading ----
	trader := execution.NewTrader(pf, portfolio.NewRiskManager(cfg.Risk), execution.NewPaperGateway(), mon,
		execution.WithObserver(m),
		execution.WithObserver(fwd),
	)
	traderEvents := mon.Subscribe(1024)
	goRun(func() { trader.Run(ctx, traderEvents) })

	// ---- WebSocket hub ----
	hub := gateway.NewHub()
	hubEvents := mon.Subscribe(1024)
	goRun(func() { hub.Run(ctx, hubEvents) })

	// ---- Servers ----
	var metricsSrv *metrics.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.Server.MetricsAddr, health, reg)
		metricsSrv.Start()
		health.StartLivenessChecker(ctx, 30*time.Second)
	}

	deps := api.Deps{
		Provider:       provider,
		Monitor:        mon,
		Trader:         trader,
		Portfolio:      pf,
		Hub:            hub,
		StrategyKind:   cfg.StrategyKind(),
		StrategyConfig: cfg.Strategy.Config,
		Library:        lib,
		Backtest:       cfg.BacktestDefaults(),
		OnBacktest:     m.ObserveBacktest,
		Logger:         log.With("component", "api"),
	}
	if journal != nil {
		deps.Journal = journal
	}
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.NewServer(deps).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server error", "error", err)
			cancel()
		}
	}()

	if err := mon.Start(cfg.Symbols); err != nil {
		log.Error("monitor start failed", "error", err)
		cancel()
	}

	// ---- Wait for shutdown signal ----
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up...")

	mon.Stop()
	mon.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api server shutdown", "error", err)
	}
	if metricsSrv != nil {
		metricsSrv.Stop(shutdownCtx)
	}
	bus.Close()
	wg.Wait()

	logSummary(log, pf)
	log.Info("shutdown complete")
}

func logSummary(log *slog.Logger, pf *portfolio.Portfolio) {
	snap := pf.Snapshot()
	log.Info("final portfolio",
		"balance", snap.Balance,
		"equity", snap.Equity,
		"open_positions", len(snap.Positions),
		"trades", snap.Metrics.TotalTrades,
		"win_rate", snap.Metrics.WinRate,
		"total_return", snap.Metrics.TotalReturn)
	for _, p := range snap.Positions {
		log.Info("position left open", "symbol", p.Symbol, "direction", p.Direction, "entry", p.EntryPrice, "size", p.Size)
	}
}
