// Package config provides configuration management for the options bot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Upstox  UpstoxConfig  `mapstructure:"upstox"`
	Trading TradingConfig `mapstructure:"trading"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// UpstoxConfig holds Upstox API credentials and endpoints.
type UpstoxConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	APISecret   string        `mapstructure:"api_secret"`
	RedirectURI string        `mapstructure:"redirect_uri"`
	BaseURL     string        `mapstructure:"base_url"`
	AuthBaseURL string        `mapstructure:"auth_base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TradingConfig holds instrument and ledger configuration.
type TradingConfig struct {
	InstrumentKey string  `mapstructure:"instrument_key"`
	LotSize       int     `mapstructure:"lot_size"`
	InitialFunds  float64 `mapstructure:"initial_funds"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nifty-options-bot"
	}
	return filepath.Join(home, ".config", "nifty-options-bot")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstox.redirect_uri", "https://localhost.com")
	v.SetDefault("upstox.base_url", "https://api.upstox.com/v2")
	v.SetDefault("upstox.auth_base_url", "https://api-v2.upstox.com")
	v.SetDefault("upstox.timeout", 10*time.Second)

	v.SetDefault("trading.instrument_key", "NSE_INDEX|Nifty 50")
	v.SetDefault("trading.lot_size", 75)
	v.SetDefault("trading.initial_funds", 500000.0)

	v.SetDefault("store.db_path", filepath.Join(DefaultConfigDir(), "bot.db"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
}

// Load reads configuration from the config file and environment.
// Environment variables use the NIFTY_BOT_ prefix, e.g. NIFTY_BOT_UPSTOX_API_KEY.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(DefaultConfigDir())
	v.AddConfigPath(".")

	v.SetEnvPrefix("NIFTY_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env carry the day.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Trading.LotSize <= 0 {
		return fmt.Errorf("trading.lot_size must be positive, got %d", c.Trading.LotSize)
	}
	if c.Trading.InitialFunds < 0 {
		return fmt.Errorf("trading.initial_funds must not be negative, got %.2f", c.Trading.InitialFunds)
	}
	if c.Upstox.Timeout <= 0 {
		return fmt.Errorf("upstox.timeout must be positive, got %s", c.Upstox.Timeout)
	}
	return nil
}
