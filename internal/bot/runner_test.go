// ====================================
// File: internal/bot/runner_test.go
// ====================================
package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/solsniper/simbot/internal/logger"
)

func initRunner(t *testing.T, cfgYAML string) *Runner {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o600))

	boot, err := logger.New(&logger.Config{LogFile: filepath.Join(t.TempDir(), "boot.log")})
	require.NoError(t, err)

	r := NewRunner(boot)
	require.NoError(t, r.Initialize(context.Background(), cfgPath))
	t.Cleanup(func() { _ = r.bus.Shutdown(context.Background()) })
	return r
}

func TestInitializeAppliesLoggingConfig(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	r := initRunner(t, fmt.Sprintf("log_file: %s\ndebug_logging: true\n", logFile))

	// The configured sink and level replace the bootstrap logger.
	assert.True(t, r.log.Core().Enabled(zapcore.DebugLevel))
	assert.Equal(t, logFile, r.cfg.LogFile)

	_ = r.log.Sync()
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Simulation initialized")
}

func TestInitializeDefaultsToInfoLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	r := initRunner(t, fmt.Sprintf("log_file: %s\n", logFile))

	assert.False(t, r.log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, r.log.Core().Enabled(zapcore.InfoLevel))
}
