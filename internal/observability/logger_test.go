package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/audiolink/wavebridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("stream started", slog.String("format", "mp3"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stream started", entry["msg"])
	assert.Equal(t, "mp3", entry["format"])
}

func TestNewLoggerWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

	logger.Debug("probe")
	assert.Contains(t, buf.String(), "msg=probe")
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLoggerWithWriter_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	type creds struct {
		User     string
		Password string
	}
	logger.Info("connecting", slog.Any("creds", creds{User: "radio", Password: "hunter2"}))

	out := buf.String()
	assert.Contains(t, out, "radio")
	assert.False(t, strings.Contains(out, "hunter2"), "password must be redacted: %s", out)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestLoggerFromContext(t *testing.T) {
	base := slog.Default()
	assert.Equal(t, base, LoggerFromContext(context.Background()))

	custom := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &bytes.Buffer{})
	ctx := ContextWithLogger(context.Background(), custom)
	assert.Equal(t, custom, LoggerFromContext(ctx))
}
