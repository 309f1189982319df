package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 115200, cfg.Supply.Serial.BaudRate)
	assert.Equal(t, "0483", cfg.Supply.Serial.VID)
	assert.Equal(t, "0064", cfg.Supply.Serial.PID)
	assert.Equal(t, "5740", cfg.Monitor.Serial.PID)
	assert.Equal(t, 500*time.Millisecond, cfg.Supply.ResponseTimeout)
	assert.Equal(t, 150*time.Millisecond, cfg.Monitor.ConfigTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Monitor.StreamWindow)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	content := `
supply:
  mode: adjustable
  serial:
    port: /dev/ttyACM3
  responseTimeout: 750ms
monitor:
  streamWindow: 50ms
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("HDR_MONITOR_SERIAL_PORT", "/dev/ttyACM9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "adjustable", cfg.Supply.Mode)
	assert.Equal(t, "/dev/ttyACM3", cfg.Supply.Serial.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Supply.ResponseTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Monitor.StreamWindow)
	assert.Equal(t, "/dev/ttyACM9", cfg.Monitor.Serial.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 115200, cfg.Monitor.Serial.BaudRate)
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"supply": {"mode": "fixed"}}`), 0o644))
	t.Setenv("HDR_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fixed", cfg.Supply.Mode)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
