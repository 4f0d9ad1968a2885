package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8176},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "test.db",
			MaxOpenConns: 10,
			MaxIdleConns: 4,
			LogLevel:     "warn",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Backend: BackendConfig{BaseURL: "http://localhost:8000"},
		Stream: StreamConfig{
			MaxReconnectAttempts: 3,
			FastRestoreWindow:    30 * time.Second,
			FullRestoreWindow:    5 * time.Minute,
			GuardGrace:           10 * time.Second,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8176, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "wavebridge.db", cfg.Database.DSN)

	assert.True(t, cfg.Backend.RealtimeEnabled)
	assert.Equal(t, 15*time.Second, cfg.Backend.HTTPTimeout)

	assert.Equal(t, 3, cfg.Stream.MaxReconnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.Stream.FastRestoreWindow)
	assert.Equal(t, 5*time.Minute, cfg.Stream.FullRestoreWindow)
	assert.Equal(t, 10*time.Second, cfg.Stream.GuardGrace)

	assert.Equal(t, "mp3", cfg.Player.DefaultFormat)
	assert.ElementsMatch(t, []string{"mp3", "aac", "flac"}, cfg.Player.SupportedFormats)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
backend:
  base_url: "http://radio.internal:8000"
  realtime_enabled: false
stream:
  max_reconnect_attempts: 5
  fast_restore_window: 45s
  full_restore_window: 10m
player:
  ident: "Firefox/121.0"
  supported_formats: ["mp3"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://radio.internal:8000", cfg.Backend.BaseURL)
	assert.False(t, cfg.Backend.RealtimeEnabled)
	assert.Equal(t, 5, cfg.Stream.MaxReconnectAttempts)
	assert.Equal(t, 45*time.Second, cfg.Stream.FastRestoreWindow)
	assert.Equal(t, 10*time.Minute, cfg.Stream.FullRestoreWindow)
	assert.Equal(t, "Firefox/121.0", cfg.Player.Ident)
	assert.Equal(t, []string{"mp3"}, cfg.Player.SupportedFormats)
}

func TestLoad_HumanReadableDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
stream:
  fast_restore_window: "45 seconds"
  full_restore_window: "10 minutes"
  guard_grace: "15s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Stream.FastRestoreWindow)
	assert.Equal(t, 10*time.Minute, cfg.Stream.FullRestoreWindow)
	assert.Equal(t, 15*time.Second, cfg.Stream.GuardGrace)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"missing backend", func(c *Config) { c.Backend.BaseURL = "" }, "backend.base_url"},
		{"zero reconnects", func(c *Config) { c.Stream.MaxReconnectAttempts = 0 }, "max_reconnect_attempts"},
		{"inverted windows", func(c *Config) { c.Stream.FullRestoreWindow = time.Second }, "full_restore_window"},
		{"zero grace", func(c *Config) { c.Stream.GuardGrace = 0 }, "guard_grace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8176}
	assert.Equal(t, "127.0.0.1:8176", c.Address())
}
