// Package config provides configuration management for wavebridge using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/audiolink/wavebridge/pkg/duration"
)

// Default configuration values.
const (
	defaultServerPort          = 8176
	defaultServerTimeout       = 30 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultMaxOpenConns        = 10
	defaultMaxIdleConns        = 4
	defaultConnMaxIdleTime     = 30 * time.Minute
	defaultBackendTimeout      = 15 * time.Second
	defaultMaxReconnects       = 3
	defaultReconnectDelay      = 2 * time.Second
	defaultFastRestoreWindow   = 30 * time.Second
	defaultFullRestoreWindow   = 5 * time.Minute
	defaultGuardGrace          = 10 * time.Second
	defaultHealthSettleDelay   = 2 * time.Second
	defaultResumeCheckInterval = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Player   PlayerConfig   `mapstructure:"player"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// ServerConfig holds control API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds state-store connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// BackendConfig holds the audio backend endpoints.
type BackendConfig struct {
	// BaseURL of the backend HTTP API, e.g. "http://localhost:8000".
	BaseURL string `mapstructure:"base_url"`
	// SignalURL is the realtime signaling endpoint (ws:// or wss://).
	// Empty derives it from BaseURL.
	SignalURL string `mapstructure:"signal_url"`
	// RealtimeEnabled gates whether the realtime transport is attempted
	// at all; the backend is still asked whether it supports it.
	RealtimeEnabled bool          `mapstructure:"realtime_enabled"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
}

// PlayerConfig describes the attached player.
type PlayerConfig struct {
	// Ident is the player identification string used for family detection.
	Ident string `mapstructure:"ident"`
	// SupportedFormats is the playback support the player reports.
	SupportedFormats []string `mapstructure:"supported_formats"`
	// DefaultFormat is used when a stream request carries no preference.
	DefaultFormat string `mapstructure:"default_format"`
}

// StreamConfig holds continuity engine tuning.
type StreamConfig struct {
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	FastRestoreWindow    time.Duration `mapstructure:"fast_restore_window"`
	FullRestoreWindow    time.Duration `mapstructure:"full_restore_window"`
	GuardGrace           time.Duration `mapstructure:"guard_grace"`
	HealthSettleDelay    time.Duration `mapstructure:"health_settle_delay"`
	ResumeCheckInterval  time.Duration `mapstructure:"resume_check_interval"`
}

// SinkConfig holds audio sink configuration.
type SinkConfig struct {
	// Output is where fallback audio bytes are written: "stdout",
	// "discard", or a path (typically a FIFO the player reads).
	Output string `mapstructure:"output"`
}

// JobsConfig holds periodic job schedules (6-field cron expressions).
type JobsConfig struct {
	StatusPollCron      string `mapstructure:"status_poll_cron"`
	SnapshotRefreshCron string `mapstructure:"snapshot_refresh_cron"`
	SnapshotJanitorCron string `mapstructure:"snapshot_janitor_cron"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with WAVEBRIDGE_, using underscores for nesting.
// Example: WAVEBRIDGE_SERVER_PORT=8176.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/wavebridge")
		v.AddConfigPath("$HOME/.wavebridge")
	}

	v.SetEnvPrefix("WAVEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	return FromViper(v)
}

// FromViper unmarshals and validates configuration from an already
// initialized viper instance. Used when the CLI layer owns the viper
// lifecycle (flag binding, config file discovery).
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook,
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// durationHook decodes durations with extended units, so config files
// can say "5 minutes" or "2 days" where Go syntax falls short.
func durationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	return duration.Parse(data.(string))
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "wavebridge.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.signal_url", "")
	v.SetDefault("backend.realtime_enabled", true)
	v.SetDefault("backend.http_timeout", defaultBackendTimeout)

	// Player defaults
	v.SetDefault("player.ident", "")
	v.SetDefault("player.supported_formats", []string{"mp3", "aac", "flac"})
	v.SetDefault("player.default_format", "mp3")

	// Stream defaults
	v.SetDefault("stream.max_reconnect_attempts", defaultMaxReconnects)
	v.SetDefault("stream.reconnect_delay", defaultReconnectDelay)
	v.SetDefault("stream.fast_restore_window", defaultFastRestoreWindow)
	v.SetDefault("stream.full_restore_window", defaultFullRestoreWindow)
	v.SetDefault("stream.guard_grace", defaultGuardGrace)
	v.SetDefault("stream.health_settle_delay", defaultHealthSettleDelay)
	v.SetDefault("stream.resume_check_interval", defaultResumeCheckInterval)

	// Sink defaults
	v.SetDefault("sink.output", "stdout")

	// Job defaults (6-field cron, seconds first)
	v.SetDefault("jobs.status_poll_cron", "0 * * * * *") // every minute
	// Refresh must outpace the fast restore window or restores go stale.
	v.SetDefault("jobs.snapshot_refresh_cron", "*/15 * * * * *") // every 15 seconds
	v.SetDefault("jobs.snapshot_janitor_cron", "0 */10 * * * *") // every 10 minutes
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}

	if c.Stream.MaxReconnectAttempts < 1 {
		return fmt.Errorf("stream.max_reconnect_attempts must be at least 1")
	}
	if c.Stream.FastRestoreWindow <= 0 {
		return fmt.Errorf("stream.fast_restore_window must be positive")
	}
	if c.Stream.FullRestoreWindow < c.Stream.FastRestoreWindow {
		return fmt.Errorf("stream.full_restore_window must not be shorter than stream.fast_restore_window")
	}
	if c.Stream.GuardGrace <= 0 {
		return fmt.Errorf("stream.guard_grace must be positive")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
