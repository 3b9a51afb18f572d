// cmd/backtest runs a strategy over historical candles and prints the
// performance report. Candles come from Binance, the SQLite store or the
// Parquet archive; the import subcommand fills the local stores.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=BTCUSDT --start=2024-01-01 --end=2024-06-01 --interval=1h
//	go run ./cmd/backtest --symbol=ETHUSDT --start=2024-01-01 --source=parquet --export=eth-h1 --json
//	go run ./cmd/backtest import --symbols=BTCUSDT,ETHUSDT --start=2023-01-01 --to=parquet
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tradingbot/config"
	"tradingbot/internal/backtest"
	"tradingbot/internal/cache"
	"tradingbot/internal/indicator"
	"tradingbot/internal/logger"
	"tradingbot/internal/marketdata"
	"tradingbot/internal/model"
	"tradingbot/internal/store/archive"
	sqlitestore "tradingbot/internal/store/sqlite"
	"tradingbot/internal/strategy"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "backtest",
		Short:         "Replay a strategy over historical candles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (optional)")

	run := runCmd()
	rootCmd.RunE = run.RunE
	rootCmd.Flags().AddFlagSet(run.Flags())
	rootCmd.AddCommand(run)
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the config and installs the logger for a subcommand.
func setup(name string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.Init(name, cfg.LoggerOptions()), nil
}

func runCmd() *cobra.Command {
	var (
		symbol, startStr, endStr, interval string
		kindStr, source, dbPath, export    string
		balance                            float64
		importCandles, asJSON              bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup("backtest")
			if err != nil {
				return err
			}

			btCfg := cfg.BacktestDefaults()
			btCfg.Symbol = strings.ToUpper(symbol)
			if btCfg.Start, btCfg.End, err = parseRange(startStr, endStr); err != nil {
				return err
			}
			if interval != "" {
				btCfg.Interval = interval
			}
			if balance > 0 {
				btCfg.InitialBalance = balance
			}
			kind := cfg.StrategyKind()
			if kindStr != "" {
				if kind, err = strategy.ParseKind(kindStr); err != nil {
					return err
				}
			}
			if dbPath == "" {
				dbPath = cfg.Storage.SQLitePath
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			lib := indicator.NewLibrary(cache.NewMemory(), cfg.Cache.TTL)
			strat, err := strategy.New(kind, cfg.Strategy.Config, lib)
			if err != nil {
				return err
			}

			arc := archive.New(cfg.Storage.ArchiveDir)
			var store *sqlitestore.Store
			if source == "sqlite" || importCandles {
				if store, err = sqlitestore.Open(dbPath); err != nil {
					return fmt.Errorf("open %s: %w", dbPath, err)
				}
				defer store.Close()
			}

			var provider model.MarketDataProvider
			switch source {
			case "binance":
				provider = marketdata.NewBinance(cfg.BinanceProvider())
				if importCandles {
					provider = &importer{MarketDataProvider: provider, sink: store, log: log}
				}
			case "sqlite":
				provider = store.Reader(btCfg.Interval)
			case "parquet":
				provider = arc.Reader(btCfg.Interval)
			default:
				return fmt.Errorf("unknown --source %q", source)
			}

			sim, err := backtest.New(btCfg, provider, strat, backtest.WithLogger(log))
			if err != nil {
				return err
			}
			began := time.Now()
			report, err := sim.Run(ctx)
			if err != nil {
				return fmt.Errorf("backtest %s: %w", btCfg.Symbol, err)
			}
			log.Info("backtest finished", "symbol", btCfg.Symbol, "candles", report.Candles, "elapsed", time.Since(began))

			if export != "" {
				trades := make([]model.Trade, len(report.Trades))
				for i, t := range report.Trades {
					trades[i] = t.Trade
				}
				path, err := arc.ExportTrades(export, trades)
				if err != nil {
					return err
				}
				log.Info("trades exported", "path", path, "count", len(trades))
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printSummary(report)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&symbol, "symbol", "s", "BTCUSDT", "Symbol to backtest")
	f.StringVar(&startStr, "start", "", "Start date, YYYY-MM-DD (required)")
	f.StringVar(&endStr, "end", "", "End date, YYYY-MM-DD (default: now)")
	f.StringVarP(&interval, "interval", "i", "", "Candle interval (default from config)")
	f.StringVar(&kindStr, "strategy", "", "rsi_bollinger | dmi | supertrend (default from config)")
	f.Float64Var(&balance, "balance", 0, "Initial balance (default from config)")
	f.StringVar(&source, "source", "binance", "Candle source: binance | sqlite | parquet")
	f.StringVar(&dbPath, "db", "", "SQLite path (default from config)")
	f.BoolVar(&importCandles, "import", false, "Store candles fetched from Binance in SQLite")
	f.StringVar(&export, "export", "", "Write closed trades to <archive>/trades/<name>.parquet")
	f.BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	cmd.MarkFlagRequired("start")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		symbols                          []string
		startStr, endStr, interval, dest string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Download Binance candles into the SQLite store or the Parquet archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup("import")
			if err != nil {
				return err
			}
			start, end, err := parseRange(startStr, endStr)
			if err != nil {
				return err
			}
			if interval == "" {
				interval = cfg.Backtest.Interval
			}
			if len(symbols) == 0 {
				symbols = cfg.Symbols
			}

			var sink candleSink
			switch dest {
			case "parquet":
				sink = archive.New(cfg.Storage.ArchiveDir)
			case "sqlite":
				store, err := sqlitestore.Open(cfg.Storage.SQLitePath)
				if err != nil {
					return fmt.Errorf("open %s: %w", cfg.Storage.SQLitePath, err)
				}
				defer store.Close()
				sink = store
			default:
				return fmt.Errorf("unknown --to %q", dest)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			provider := marketdata.NewBinance(cfg.BinanceProvider())
			for _, sym := range symbols {
				sym = strings.ToUpper(strings.TrimSpace(sym))
				candles, err := provider.GetHistoricalData(ctx, sym, start, end, interval)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", sym, err)
				}
				if err := sink.SaveCandles(ctx, interval, candles); err != nil {
					return fmt.Errorf("store %s: %w", sym, err)
				}
				log.Info("candles imported", "symbol", sym, "interval", interval, "count", len(candles), "to", dest)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&symbols, "symbols", nil, "Symbols to import (default from config)")
	f.StringVar(&startStr, "start", "", "Start date, YYYY-MM-DD (required)")
	f.StringVar(&endStr, "end", "", "End date, YYYY-MM-DD (default: now)")
	f.StringVarP(&interval, "interval", "i", "", "Candle interval (default from config)")
	f.StringVar(&dest, "to", "parquet", "Destination: parquet | sqlite")
	cmd.MarkFlagRequired("start")
	return cmd
}

func parseRange(startStr, endStr string) (start, end time.Time, err error) {
	if start, err = time.Parse("2006-01-02", startStr); err != nil {
		return start, end, fmt.Errorf("invalid --start: %w", err)
	}
	end = time.Now().UTC()
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return start, end, fmt.Errorf("invalid --end: %w", err)
		}
	}
	return start, end, nil
}

// candleSink is implemented by the SQLite store and the Parquet archive.
type candleSink interface {
	SaveCandles(ctx context.Context, interval string, candles []model.Candle) error
}

// importer stores every history fetch before returning it.
type importer struct {
	model.MarketDataProvider
	sink candleSink
	log  *slog.Logger
}

func (i *importer) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time, interval string) ([]model.Candle, error) {
	candles, err := i.MarketDataProvider.GetHistoricalData(ctx, symbol, start, end, interval)
	if err != nil {
		return nil, err
	}
	if err := i.sink.SaveCandles(ctx, interval, candles); err != nil {
		i.log.Warn("candle import failed", "symbol", symbol, "error", err)
	} else {
		i.log.Info("candles imported", "symbol", symbol, "interval", interval, "count", len(candles))
	}
	return candles, nil
}

func printSummary(r backtest.Report) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Symbol:          %-18s ║\n", r.Symbol)
	fmt.Printf("║  Strategy:        %-18s ║\n", r.Strategy)
	fmt.Printf("║  Candles:         %-18d ║\n", r.Candles)
	fmt.Printf("║  Trades:          %-18d ║\n", r.TotalTrades)
	fmt.Printf("║  Win rate:        %-17.2f%% ║\n", r.WinRate)
	fmt.Printf("║  Final balance:   %-18.2f ║\n", r.FinalBalance)
	fmt.Printf("║  Total return:    %-17.2f%% ║\n", r.TotalReturn)
	fmt.Printf("║  Max drawdown:    %-17.2f%% ║\n", r.MaxDrawdown)
	fmt.Printf("║  Sharpe ratio:    %-18.2f ║\n", r.SharpeRatio)
	fmt.Println("╚══════════════════════════════════════╝")
}
