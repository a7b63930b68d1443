package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Rates    RatesConfig    `mapstructure:"rates"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Settings SettingsConfig `mapstructure:"settings"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// BackendConfig 描述后端 REST 服务连接信息。
type BackendConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	Retry     RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// RatesConfig 选择报价来源。
type RatesConfig struct {
	Source    string          `mapstructure:"source"`
	OrderBook OrderBookConfig `mapstructure:"orderbook"`
}

// OrderBookConfig 描述基于公开盘口的报价参数。
type OrderBookConfig struct {
	Exchange   string            `mapstructure:"exchange"`
	Depth      int               `mapstructure:"depth"`
	CacheTTL   time.Duration     `mapstructure:"cache_ttl"`
	FeeRate    float64           `mapstructure:"fee_rate"`
	UseSandbox bool              `mapstructure:"use_sandbox"`
	FiatProxy  map[string]string `mapstructure:"fiat_proxy"`
	Retry      RetryConfig       `mapstructure:"retry"`
}

// ExchangeConfig 控制兑换页面的报价与下单行为。
type ExchangeConfig struct {
	Debounce      time.Duration `mapstructure:"debounce"`
	QuoteTimeout  time.Duration `mapstructure:"quote_timeout"`
	ExecTimeout   time.Duration `mapstructure:"exec_timeout"`
	DefaultMode   string        `mapstructure:"default_mode"`
	DefaultFiat   string        `mapstructure:"default_fiat"`
	DefaultCrypto string        `mapstructure:"default_crypto"`
	HistoryLimit  int           `mapstructure:"history_limit"`
}

// AssetsConfig 列出可交易的资产代码。
type AssetsConfig struct {
	Fiat   []string `mapstructure:"fiat"`
	Crypto []string `mapstructure:"crypto"`
}

// SettingsConfig 控制滑点与截止时间的默认值。
type SettingsConfig struct {
	SlippagePresets        []int `mapstructure:"slippage_presets"`
	DefaultSlippageBps     int   `mapstructure:"default_slippage_bps"`
	DefaultDeadlineMinutes int   `mapstructure:"default_deadline_minutes"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// MonitorConfig 控制监控接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

const (
	RateSourceBackend   = "backend"
	RateSourceOrderBook = "orderbook"
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Backend.BaseURL == "" {
		err = multierr.Append(err, errors.New("backend.base_url 不能为空"))
	}
	if c.Backend.Timeout <= 0 {
		err = multierr.Append(err, errors.New("backend.timeout 必须大于0"))
	}
	if c.Backend.RateLimit < 0 {
		err = multierr.Append(err, errors.New("backend.rate_limit 不能为负"))
	}
	if c.Backend.RateLimit > 0 && c.Backend.Burst <= 0 {
		err = multierr.Append(err, errors.New("backend.burst 必须大于0"))
	}
	err = multierr.Append(err, validateRetry("backend.retry", c.Backend.Retry))

	switch strings.ToLower(c.Rates.Source) {
	case RateSourceBackend:
	case RateSourceOrderBook:
		if c.Rates.OrderBook.Exchange == "" {
			err = multierr.Append(err, errors.New("rates.orderbook.exchange 不能为空"))
		}
		if c.Rates.OrderBook.Depth <= 0 {
			err = multierr.Append(err, errors.New("rates.orderbook.depth 必须大于0"))
		}
		if c.Rates.OrderBook.CacheTTL < 0 {
			err = multierr.Append(err, errors.New("rates.orderbook.cache_ttl 不能为负"))
		}
		if c.Rates.OrderBook.FeeRate < 0 || c.Rates.OrderBook.FeeRate > 0.05 {
			err = multierr.Append(err, errors.New("rates.orderbook.fee_rate 应位于[0,0.05]"))
		}
		err = multierr.Append(err, validateRetry("rates.orderbook.retry", c.Rates.OrderBook.Retry))
	default:
		err = multierr.Append(err, fmt.Errorf("rates.source 不支持 %q", c.Rates.Source))
	}

	if c.Exchange.Debounce <= 0 {
		err = multierr.Append(err, errors.New("exchange.debounce 必须大于0"))
	}
	if c.Exchange.QuoteTimeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.quote_timeout 必须大于0"))
	}
	if c.Exchange.ExecTimeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.exec_timeout 必须大于0"))
	}
	switch strings.ToLower(c.Exchange.DefaultMode) {
	case "buy", "sell":
	default:
		err = multierr.Append(err, fmt.Errorf("exchange.default_mode 必须为 buy 或 sell，当前为 %q", c.Exchange.DefaultMode))
	}
	if c.Exchange.HistoryLimit <= 0 {
		err = multierr.Append(err, errors.New("exchange.history_limit 必须大于0"))
	}

	if len(c.Assets.Fiat) == 0 {
		err = multierr.Append(err, errors.New("assets.fiat 至少包含一个法币"))
	}
	if len(c.Assets.Crypto) == 0 {
		err = multierr.Append(err, errors.New("assets.crypto 至少包含一个数字资产"))
	}
	if !containsFold(c.Assets.Fiat, c.Exchange.DefaultFiat) {
		err = multierr.Append(err, fmt.Errorf("exchange.default_fiat %q 不在 assets.fiat 中", c.Exchange.DefaultFiat))
	}
	if !containsFold(c.Assets.Crypto, c.Exchange.DefaultCrypto) {
		err = multierr.Append(err, fmt.Errorf("exchange.default_crypto %q 不在 assets.crypto 中", c.Exchange.DefaultCrypto))
	}

	if len(c.Settings.SlippagePresets) == 0 {
		err = multierr.Append(err, errors.New("settings.slippage_presets 不能为空"))
	}
	for _, bps := range c.Settings.SlippagePresets {
		if bps <= 0 {
			err = multierr.Append(err, fmt.Errorf("settings.slippage_presets 包含非法值 %d", bps))
		}
	}
	if c.Settings.DefaultSlippageBps <= 0 {
		err = multierr.Append(err, errors.New("settings.default_slippage_bps 必须大于0"))
	}
	if c.Settings.DefaultDeadlineMinutes <= 0 {
		err = multierr.Append(err, errors.New("settings.default_deadline_minutes 必须大于0"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于[1,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func validateRetry(prefix string, r RetryConfig) error {
	var err error
	if r.MaxAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s.max_attempts 必须大于0", prefix))
	}
	if r.MinDelay <= 0 || r.MaxDelay <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s.delay 必须为正", prefix))
	}
	if r.MinDelay > r.MaxDelay {
		err = multierr.Append(err, fmt.Errorf("%s.min_delay 不能大于 max_delay", prefix))
	}
	return err
}

func containsFold(items []string, target string) bool {
	for _, item := range items {
		if strings.EqualFold(item, target) {
			return true
		}
	}
	return false
}
