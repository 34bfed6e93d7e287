package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Redis       RedisConfig     `mapstructure:"redis"`
	History     HistoryConfig   `mapstructure:"history"`
	Forecast    ForecastConfig  `mapstructure:"forecast"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HistoryConfig describes the upstream exchange-rate history source.
type HistoryConfig struct {
	// BaseURL is the base URL of the wallet backend serving rate history.
	BaseURL string `mapstructure:"base_url"`
	// TimeoutSeconds bounds every history request.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ForecastConfig drives the forecast pipeline and its background refresh.
type ForecastConfig struct {
	// Currencies is the fixed set of 3-letter codes refreshed in the background.
	Currencies []string `mapstructure:"currencies"`
	// UpdateIntervalSeconds is the pause between background refresh passes.
	UpdateIntervalSeconds int `mapstructure:"update_interval_seconds"`
	// CacheTTLSeconds is the default expiry for on-demand cache writes.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	// HistoryDays is the training window requested from the history source.
	HistoryDays int `mapstructure:"history_days"`
	// HorizonDays is the number of future days predicted per run.
	HorizonDays int `mapstructure:"horizon_days"`
}

type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	DSN        string  `mapstructure:"dsn"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("history.base_url", "HISTORY_BASE_URL")
	_ = viper.BindEnv("redis.host", "REDIS_HOST")
	_ = viper.BindEnv("redis.port", "REDIS_PORT")
	_ = viper.BindEnv("telemetry.dsn", "SENTRY_DSN")

	// Config file is optional; defaults and environment cover everything
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("history.base_url", "http://nginx")
	viper.SetDefault("history.timeout_seconds", 30)

	viper.SetDefault("forecast.currencies", []string{"EUR", "USD", "GBP", "PLN", "CHF"})
	viper.SetDefault("forecast.update_interval_seconds", 3600)
	viper.SetDefault("forecast.cache_ttl_seconds", 3600)
	viper.SetDefault("forecast.history_days", 90)
	viper.SetDefault("forecast.horizon_days", 7)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.sample_rate", 0.2)
}

func validate(config *Config) error {
	if config.History.BaseURL == "" {
		return fmt.Errorf("history.base_url cannot be empty")
	}
	if config.Forecast.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("forecast.update_interval_seconds must be positive, got %d", config.Forecast.UpdateIntervalSeconds)
	}
	if config.Forecast.HorizonDays <= 0 {
		return fmt.Errorf("forecast.horizon_days must be positive, got %d", config.Forecast.HorizonDays)
	}
	if len(config.Forecast.Currencies) == 0 {
		return fmt.Errorf("forecast.currencies cannot be empty")
	}
	for _, c := range config.Forecast.Currencies {
		if len(c) != 3 {
			return fmt.Errorf("forecast.currencies entry %q is not a 3-letter code", c)
		}
	}
	return nil
}
