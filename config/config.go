package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradingbot/internal/backtest"
	"tradingbot/internal/cache"
	"tradingbot/internal/logger"
	"tradingbot/internal/marketdata"
	"tradingbot/internal/monitor"
	"tradingbot/internal/portfolio"
	"tradingbot/internal/strategy"
)

// Config holds all application configuration. Values come from defaults,
// then an optional YAML file, then environment variables.
type Config struct {
	Symbols        []string `yaml:"symbols"`
	InitialBalance float64  `yaml:"initial_balance"`

	Strategy StrategyConfig       `yaml:"strategy"`
	Risk     portfolio.RiskConfig `yaml:"risk"`
	Backtest BacktestConfig       `yaml:"backtest"`
	Monitor  monitor.Config       `yaml:"monitor"`
	Cache    CacheConfig          `yaml:"cache"`
	Storage  StorageConfig        `yaml:"storage"`
	Server   ServerConfig         `yaml:"server"`
	Binance  BinanceConfig        `yaml:"binance"`
	Notify   NotifyConfig         `yaml:"notify"`
	Log      LogConfig            `yaml:"log"`
}

// StrategyConfig selects the strategy variant and its thresholds.
type StrategyConfig struct {
	Kind            string `yaml:"kind"`
	strategy.Config `yaml:",inline"`
}

// BacktestConfig holds the defaults for backtest runs.
type BacktestConfig struct {
	Interval         string  `yaml:"interval"`
	PositionFraction float64 `yaml:"position_fraction"`
	Warmup           int     `yaml:"warmup"`
}

// CacheConfig configures the indicator cache. An empty RedisAddr keeps the
// cache in process.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// StorageConfig locates the SQLite database and the Parquet archive. An
// empty SQLite path disables the trade journal.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

// ServerConfig holds listener addresses. An empty address disables that
// listener.
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// BinanceConfig configures the market data provider.
type BinanceConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RecentInterval string        `yaml:"recent_interval"`
}

// NotifyConfig enables notification backends.
type NotifyConfig struct {
	WebhookURL       string `yaml:"webhook_url"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	bt := backtest.DefaultConfig()
	return &Config{
		Symbols:        []string{"BTCUSDT"},
		InitialBalance: 10000,
		Strategy:       StrategyConfig{Kind: string(strategy.KindRSIBollinger), Config: strategy.DefaultConfig()},
		Risk:           portfolio.DefaultRiskConfig(),
		Backtest: BacktestConfig{
			Interval:         bt.Interval,
			PositionFraction: bt.PositionFraction,
			Warmup:           bt.Warmup,
		},
		Monitor: monitor.DefaultConfig(),
		Cache:   CacheConfig{TTL: time.Minute},
		Storage: StorageConfig{SQLitePath: "data/tradingbot.db", ArchiveDir: "data/archive"},
		Server:  ServerConfig{HTTPAddr: ":8080", MetricsAddr: ":9090"},
		Binance: BinanceConfig{BaseURL: "https://api.binance.com", Timeout: 10 * time.Second, RecentInterval: "1h"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env (if present), then the YAML file at path (skipped when
// path is empty), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if v := getEnv("SYMBOLS", ""); v != "" {
		cfg.Symbols = splitList(v)
	}
	collect(getEnvFloat("INITIAL_BALANCE", &cfg.InitialBalance))

	cfg.Strategy.Kind = getEnv("STRATEGY", cfg.Strategy.Kind)
	collect(getEnvFloat("STOP_LOSS", &cfg.Strategy.StopLossPct))
	collect(getEnvFloat("TAKE_PROFIT", &cfg.Strategy.TakeProfitPct))
	collect(getEnvInt("MIN_LOOKBACK", &cfg.Strategy.MinLookback))
	collect(getEnvInt("ATR_PERIOD", &cfg.Strategy.ATRPeriod))

	collect(getEnvFloat("RISK_PER_TRADE", &cfg.Risk.RiskPerTrade))
	collect(getEnvFloat("MAX_POSITION_SIZE", &cfg.Risk.MaxPositionSize))
	collect(getEnvFloat("MAX_DRAWDOWN", &cfg.Risk.MaxDrawdown))
	collect(getEnvInt("MAX_OPEN_POSITIONS", &cfg.Risk.MaxOpenPositions))

	cfg.Backtest.Interval = getEnv("BACKTEST_INTERVAL", cfg.Backtest.Interval)

	collect(getEnvDuration("MONITOR_INTERVAL", &cfg.Monitor.Interval))
	collect(getEnvDuration("MONITOR_ERROR_INTERVAL", &cfg.Monitor.ErrorInterval))
	collect(getEnvDuration("MONITOR_FETCH_TIMEOUT", &cfg.Monitor.FetchTimeout))

	cfg.Cache.RedisAddr = getEnv("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	collect(getEnvDuration("CACHE_TTL", &cfg.Cache.TTL))

	cfg.Storage.SQLitePath = getEnv("SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.ArchiveDir = getEnv("ARCHIVE_DIR", cfg.Storage.ArchiveDir)
	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.MetricsAddr = getEnv("METRICS_ADDR", cfg.Server.MetricsAddr)
	cfg.Binance.BaseURL = getEnv("BINANCE_BASE_URL", cfg.Binance.BaseURL)

	cfg.Notify.WebhookURL = getEnv("WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Notify.TelegramBotToken)
	cfg.Notify.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", cfg.Notify.TelegramChatID)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	return errors.Join(errs...)
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("config: at least one symbol is required")
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("config: initial_balance must be positive, got %v", c.InitialBalance)
	}
	if _, err := strategy.ParseKind(c.Strategy.Kind); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Strategy.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := marketdata.IntervalDuration(c.Backtest.Interval); err != nil {
		return fmt.Errorf("config: backtest interval: %w", err)
	}
	if c.Backtest.PositionFraction <= 0 || c.Backtest.PositionFraction > 1 {
		return fmt.Errorf("config: backtest position_fraction must be in (0,1], got %v", c.Backtest.PositionFraction)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive, got %v", c.Cache.TTL)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if (c.Notify.TelegramBotToken == "") != (c.Notify.TelegramChatID == "") {
		return errors.New("config: telegram needs both bot token and chat id")
	}
	return nil
}

// StrategyKind returns the validated strategy variant.
func (c *Config) StrategyKind() strategy.Kind {
	k, _ := strategy.ParseKind(c.Strategy.Kind)
	return k
}

// BacktestDefaults builds the backtest config requests start from.
func (c *Config) BacktestDefaults() backtest.Config {
	return backtest.Config{
		Interval:         c.Backtest.Interval,
		InitialBalance:   c.InitialBalance,
		PositionFraction: c.Backtest.PositionFraction,
		Warmup:           c.Backtest.Warmup,
	}
}

// RedisConfig builds the cache client settings.
func (c *Config) RedisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Cache.RedisAddr,
		Password: c.Cache.RedisPassword,
		DB:       c.Cache.RedisDB,
	}
}

// BinanceProvider builds the market data client settings.
func (c *Config) BinanceProvider() marketdata.BinanceConfig {
	return marketdata.BinanceConfig{
		BaseURL:        c.Binance.BaseURL,
		Timeout:        c.Binance.Timeout,
		RecentInterval: c.Binance.RecentInterval,
	}
}

// LoggerOptions builds the logger settings.
func (c *Config) LoggerOptions() logger.Options {
	lvl, _ := logger.ParseLevel(c.Log.Level)
	return logger.Options{Level: lvl, Format: c.Log.Format}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = f
	return nil
}

func getEnvInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func getEnvDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
