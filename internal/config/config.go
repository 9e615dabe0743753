// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	StartingBalanceSOL float64       `mapstructure:"starting_balance_sol"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	MaxPositions       int           `mapstructure:"max_positions"`
	SimulationSeed     int64         `mapstructure:"simulation_seed"`

	MarketDataURL string `mapstructure:"market_data_url"`
	WebSocketURL  string `mapstructure:"websocket_url"`
	PostgresURL   string `mapstructure:"postgres_url"`

	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
}

const (
	DefaultStartingBalance = 10.0
	DefaultTickInterval    = 5 * time.Second
	DefaultMaxPositions    = 10
	DefaultLogFile         = "simbot.log"
)

// LoadConfig reads the config file at path, applies defaults and
// SIMBOT_-prefixed environment overrides, and validates the result.
// path may be empty to run on defaults and environment alone.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"starting_balance_sol": DefaultStartingBalance,
		"tick_interval":        DefaultTickInterval,
		"max_positions":        DefaultMaxPositions,
		"simulation_seed":      time.Now().UnixNano(),
		"log_file":             DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SIMBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.StartingBalanceSOL <= 0 {
		return errors.New("starting_balance_sol must be positive")
	}
	if cfg.TickInterval <= 0 {
		return errors.New("invalid tick_interval")
	}
	if cfg.MaxPositions <= 0 {
		return errors.New("invalid max_positions")
	}
	if cfg.MarketDataURL != "" {
		if err := validateURL(cfg.MarketDataURL, "http"); err != nil {
			return errors.New("invalid market data URL protocol")
		}
	}
	if cfg.WebSocketURL != "" {
		if err := validateURL(cfg.WebSocketURL, "ws"); err != nil {
			return errors.New("invalid WebSocket URL protocol")
		}
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}
