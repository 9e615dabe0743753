// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultStartingBalance, cfg.StartingBalanceSOL)
	assert.Equal(t, DefaultTickInterval, cfg.TickInterval)
	assert.Equal(t, DefaultMaxPositions, cfg.MaxPositions)
	assert.Equal(t, DefaultLogFile, cfg.LogFile)
	assert.NotZero(t, cfg.SimulationSeed)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
starting_balance_sol: 25.5
tick_interval: 2s
max_positions: 3
websocket_url: wss://stream.example.com/prices
market_data_url: https://api.example.com/dex
debug_logging: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 25.5, cfg.StartingBalanceSOL)
	assert.Equal(t, 2*time.Second, cfg.TickInterval)
	assert.Equal(t, 3, cfg.MaxPositions)
	assert.Equal(t, "wss://stream.example.com/prices", cfg.WebSocketURL)
	assert.True(t, cfg.DebugLogging)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SIMBOT_STARTING_BALANCE_SOL", "42")
	t.Setenv("SIMBOT_MAX_POSITIONS", "7")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 42.0, cfg.StartingBalanceSOL)
	assert.Equal(t, 7, cfg.MaxPositions)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero balance", func(c *Config) { c.StartingBalanceSOL = 0 }},
		{"negative balance", func(c *Config) { c.StartingBalanceSOL = -1 }},
		{"zero tick interval", func(c *Config) { c.TickInterval = 0 }},
		{"zero max positions", func(c *Config) { c.MaxPositions = 0 }},
		{"http websocket url", func(c *Config) { c.WebSocketURL = "http://not-ws.example.com" }},
		{"ws market data url", func(c *Config) { c.MarketDataURL = "ws://not-http.example.com" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				StartingBalanceSOL: 10,
				TickInterval:       time.Second,
				MaxPositions:       5,
			}
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}
