package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"divergence_bot/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	databaseDSN       = "DATABASE_DSN"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"` // админ, только он управляет ботом
	} `mapstructure:"telegram"`

	Bybit struct {
		RESTURL        string        `mapstructure:"rest_url"`
		WSURL          string        `mapstructure:"ws_url"`
		QuoteCoin      string        `mapstructure:"quote_coin"`
		HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
		PingInterval   time.Duration `mapstructure:"ping_interval"`
		ReconnectTries uint          `mapstructure:"reconnect_tries"`
	} `mapstructure:"bybit"`

	Scanner struct {
		Symbols       []string      `mapstructure:"symbols"` // пусто => все USDT-пары в статусе Trading
		Interval      time.Duration `mapstructure:"interval"`
		Timeframe     string        `mapstructure:"timeframe"`
		CandleLimit   int           `mapstructure:"candle_limit"`
		SymbolPause   time.Duration `mapstructure:"symbol_pause"`
		FullWait      time.Duration `mapstructure:"full_wait"`
		ErrorCooldown time.Duration `mapstructure:"error_cooldown"`
		FetchTries    uint          `mapstructure:"fetch_tries"`
		AutoStart     bool          `mapstructure:"auto_start"`
		UniverseTTL   time.Duration `mapstructure:"universe_ttl"` // как часто перечитывать список пар с биржи
	} `mapstructure:"scanner"`

	Trading struct {
		InitialBalance  float64 `mapstructure:"initial_balance"`
		models.Settings `mapstructure:",squash"`
	} `mapstructure:"trading"`

	Journal struct {
		CSVPath     string `mapstructure:"csv_path"`
		PostgresDSN string `mapstructure:"postgres_dsn"`
		SQLitePath  string `mapstructure:"sqlite_path"`
	} `mapstructure:"journal"`

	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`

	Health struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"health"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
		Service string `mapstructure:"service"`
	} `mapstructure:"tracing"`
}

// NewConfig читает .env, configs/<CONFIG_FILE> и переменные окружения.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = "config.yaml"
	}
	dir := os.Getenv(configDirENV)
	if dir == "" {
		dir = "configs"
	}
	return Load(filepath.Join(dir, name))
}

// Load то же самое, но с явным путём. Отсутствие файла не ошибка: дефолты + env.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("journal.postgres_dsn", "JOURNAL_POSTGRES_DSN", databaseDSN); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.Trading.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Trading.InitialBalance < 0 {
		errs = append(errs, fmt.Errorf("initial_balance must be >= 0"))
	}
	if c.Scanner.Interval <= 0 {
		errs = append(errs, fmt.Errorf("scanner.interval must be > 0"))
	}
	if c.Scanner.CandleLimit < 61 || c.Scanner.CandleLimit > 1000 {
		errs = append(errs, fmt.Errorf("scanner.candle_limit must be in [61,1000], got %d", c.Scanner.CandleLimit))
	}
	if c.Bybit.RESTURL == "" || c.Bybit.WSURL == "" {
		errs = append(errs, fmt.Errorf("bybit urls are required"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	d := models.DefaultSettings()

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("bybit.rest_url", "https://api.bybit.com")
	v.SetDefault("bybit.ws_url", "wss://stream.bybit.com/v5/public/spot")
	v.SetDefault("bybit.quote_coin", "USDT")
	v.SetDefault("bybit.http_timeout", "10s")
	v.SetDefault("bybit.ping_interval", "20s")
	v.SetDefault("bybit.reconnect_tries", 10)

	v.SetDefault("scanner.symbols", []string{})
	v.SetDefault("scanner.interval", "5m")
	v.SetDefault("scanner.timeframe", "5")
	v.SetDefault("scanner.candle_limit", 300)
	v.SetDefault("scanner.symbol_pause", "1s")
	v.SetDefault("scanner.full_wait", "30s")
	v.SetDefault("scanner.error_cooldown", "60s")
	v.SetDefault("scanner.fetch_tries", 3)
	v.SetDefault("scanner.auto_start", true)
	v.SetDefault("scanner.universe_ttl", "1h")

	v.SetDefault("trading.initial_balance", 1000.0)
	v.SetDefault("trading.position_size", d.PositionSize)
	v.SetDefault("trading.max_concurrent_positions", d.MaxConcurrentPositions)
	v.SetDefault("trading.commission_rate", d.CommissionRate)
	v.SetDefault("trading.stop_mode", string(d.StopMode))
	v.SetDefault("trading.stop_loss_percent", d.StopLossPercent)
	v.SetDefault("trading.take_profit_percent", d.TakeProfitPercent)
	v.SetDefault("trading.atr_multiplier", d.ATRMultiplier)
	v.SetDefault("trading.trailing_enabled", d.TrailingEnabled)
	v.SetDefault("trading.trailing_activation_percent", d.TrailingActivationPercent)
	v.SetDefault("trading.trailing_breakeven", d.TrailingBreakeven)
	v.SetDefault("trading.min_price_diff_percent", d.MinPriceDiffPercent)
	v.SetDefault("trading.require_higher_low", d.RequireHigherLow)
	v.SetDefault("trading.near_window", d.NearWindow)
	v.SetDefault("trading.far_window", d.FarWindow)
	v.SetDefault("trading.trend_filter", d.TrendFilter)
	v.SetDefault("trading.trend_interval", d.TrendInterval)

	v.SetDefault("journal.csv_path", "trades.csv")
	v.SetDefault("journal.postgres_dsn", "")
	v.SetDefault("journal.sqlite_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "bot.log")

	v.SetDefault("health.addr", ":8080")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("tracing.service", "divergence_bot")
}
