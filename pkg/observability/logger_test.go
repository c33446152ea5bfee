package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"ERROR", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.input), "input %q", tt.input)
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Info("check evaluated")

	line := logLine(t, &buf)
	assert.Equal(t, "check evaluated", line["msg"])
	assert.Equal(t, "INFO", line["level"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("suppressed")
	assert.Empty(t, buf.String())

	logger.Warn("emitted")
	assert.Contains(t, buf.String(), "emitted")
}

func TestLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithField("user_id", 10)

	logger.Info("resolved")

	line := logLine(t, &buf)
	assert.Equal(t, float64(10), line["user_id"])
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithFields(map[string]interface{}{
		"permission": "projects.view",
		"allowed":    true,
	})

	logger.Info("decision")

	line := logLine(t, &buf)
	assert.Equal(t, "projects.view", line["permission"])
	assert.Equal(t, true, line["allowed"])
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("store unreachable")).Error("check failed")
	assert.Contains(t, buf.String(), "store unreachable")

	// nil errors add nothing
	assert.Equal(t, logger, logger.WithError(nil))
}

func TestLogger_Formatted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.Infof("user %d denied", 10)
	assert.Contains(t, buf.String(), "user 10 denied")
}

func TestLogger_Level(t *testing.T) {
	assert.Equal(t, WarnLevel, NewLogger(WarnLevel, &bytes.Buffer{}).Level())
}
