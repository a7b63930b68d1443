package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "swapdesk"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return decode(v)
}

// Default 返回仅由默认值组成的配置，主要用于测试与本地演示。
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.Exchange.DefaultMode = strings.ToLower(cfg.Exchange.DefaultMode)
	cfg.Exchange.DefaultFiat = strings.ToUpper(cfg.Exchange.DefaultFiat)
	cfg.Exchange.DefaultCrypto = strings.ToUpper(cfg.Exchange.DefaultCrypto)
	cfg.Rates.Source = strings.ToLower(cfg.Rates.Source)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("backend.base_url", "http://localhost:8080/api/v1")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("backend.rate_limit", 10.0)
	v.SetDefault("backend.burst", 5)
	v.SetDefault("backend.retry.max_attempts", 3)
	v.SetDefault("backend.retry.min_delay", "300ms")
	v.SetDefault("backend.retry.max_delay", "3s")

	v.SetDefault("rates.source", RateSourceBackend)
	v.SetDefault("rates.orderbook.exchange", "binance")
	v.SetDefault("rates.orderbook.depth", 50)
	v.SetDefault("rates.orderbook.cache_ttl", "2s")
	v.SetDefault("rates.orderbook.fee_rate", 0.001)
	v.SetDefault("rates.orderbook.use_sandbox", false)
	v.SetDefault("rates.orderbook.fiat_proxy", map[string]string{"USD": "USDT", "EUR": "EUR"})
	v.SetDefault("rates.orderbook.retry.max_attempts", 3)
	v.SetDefault("rates.orderbook.retry.min_delay", "500ms")
	v.SetDefault("rates.orderbook.retry.max_delay", "5s")

	v.SetDefault("exchange.debounce", "500ms")
	v.SetDefault("exchange.quote_timeout", "8s")
	v.SetDefault("exchange.exec_timeout", "30s")
	v.SetDefault("exchange.default_mode", "buy")
	v.SetDefault("exchange.default_fiat", "USD")
	v.SetDefault("exchange.default_crypto", "BTC")
	v.SetDefault("exchange.history_limit", 10)

	v.SetDefault("assets.fiat", []string{"USD", "EUR", "GBP", "NGN"})
	v.SetDefault("assets.crypto", []string{"BTC", "ETH", "USDT", "SOL"})

	v.SetDefault("settings.slippage_presets", []int{10, 50, 100})
	v.SetDefault("settings.default_slippage_bps", 50)
	v.SetDefault("settings.default_deadline_minutes", 20)

	v.SetDefault("database.path", "data/swapdesk.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stderr"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.port", 9464)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
