package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCaptured(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()

	output := &bytes.Buffer{}
	cfg.writer = output

	l, err := New(&cfg)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l, output
}

func TestNewLevelThreshold(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLines int
	}{
		{"debug passes everything", "debug", 4},
		{"info drops debug", "info", 3},
		{"warn drops info", "warn", 2},
		{"error drops warn", "error", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, output := newCaptured(t, Config{Level: tt.level, Format: "json"})

			l.Debug("debug message")
			l.Info("info message")
			l.Warn("warn message")
			l.Error("error message")

			lines := strings.Split(strings.TrimSpace(output.String()), "\n")
			assert.Len(t, lines, tt.wantLines)
		})
	}
}

func TestNewFormats(t *testing.T) {
	t.Run("json emits structured records", func(t *testing.T) {
		l, output := newCaptured(t, Config{Level: "info", Format: "json"})

		l.Info("message processed", slog.String("job_id", "job-1"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "message processed", entry["msg"])
		assert.Equal(t, "job-1", entry["job_id"])
		assert.Contains(t, entry, "time")
	})

	t.Run("unset format falls back to json", func(t *testing.T) {
		l, output := newCaptured(t, Config{Level: "info"})

		l.Info("fallback")

		var entry map[string]interface{}
		assert.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	})

	t.Run("console uses tint", func(t *testing.T) {
		l, output := newCaptured(t, Config{
			Level:      "info",
			Format:     "console",
			TimeFormat: time.RFC3339,
		})

		l.Info("console test")

		// tint renders the level as "INF"
		assert.Contains(t, output.String(), "INF")
		assert.Contains(t, output.String(), "console test")
	})

	t.Run("source location when enabled", func(t *testing.T) {
		l, output := newCaptured(t, Config{Level: "info", Format: "json", EnableSource: true})

		l.Info("message with source")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
		assert.Contains(t, entry, "source")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.level))
		})
	}
}

func TestNewDefault(t *testing.T) {
	l := NewDefault()
	require.NotNil(t, l)
	assert.NotNil(t, l.Logger)
}

func TestLoggerWith(t *testing.T) {
	l, output := newCaptured(t, Config{Level: "info", Format: "json"})

	l.With(slog.String("instance_id", "host-1a2b3c4d")).Info("consumer loop started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	assert.Equal(t, "host-1a2b3c4d", entry["instance_id"])
	assert.Equal(t, "consumer loop started", entry["msg"])
}

func TestLoggerWithGroup(t *testing.T) {
	l, output := newCaptured(t, Config{Level: "info", Format: "json"})

	l.WithGroup("detector").Info("cycle finished", slog.Int("changed_count", 3))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	require.Contains(t, entry, "detector")
	group := entry["detector"].(map[string]interface{})
	assert.Equal(t, float64(3), group["changed_count"])
}
