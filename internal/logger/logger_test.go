package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/carscout/internal/config"
)

func TestSetup_JSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l, err := Setup(config.ServerConfig{LogLevel: "warn", LogFormat: "json"}, &buf)
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("generation attempt failed", "attempt", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "generation attempt failed", entry["msg"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "carscout", entry["service"])

	assert.Same(t, l, slog.Default())
}

func TestSetup_Text(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l, err := Setup(config.ServerConfig{LogLevel: "debug", LogFormat: "text"}, &buf)
	require.NoError(t, err)

	l.Debug("cache hit", "op", "ratings")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "op=ratings")
}

func TestSetup_Invalid(t *testing.T) {
	_, err := Setup(config.ServerConfig{LogLevel: "loud", LogFormat: "json"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = Setup(config.ServerConfig{LogLevel: "info", LogFormat: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}
