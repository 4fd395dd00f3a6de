package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, Config{Level: slog.LevelWarn, JSON: true})
	logger.Info("hidden")
	logger.Warn("Could not include required dependency", "package", "left-pad")

	var record map[string]any
	err := json.Unmarshal(buf.Bytes(), &record)
	assert.NoError(t, err)
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "Could not include required dependency", record["msg"])
	assert.Equal(t, "left-pad", record["package"])
}

func TestNewConsole(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, Config{Level: slog.LevelDebug})
	logger.Debug("Skipping legacy deployment-time package", "package", "@pulumi/aws")
	out := buf.String()
	assert.Contains(t, out, "Skipping legacy deployment-time package")
	assert.Contains(t, out, "@pulumi/aws")
}

func TestNewLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, Config{Level: slog.LevelError})
	logger.Warn("dropped")
	assert.Equal(t, "", buf.String())
}

func TestNewNoColor(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(buf, Config{Level: slog.LevelWarn, NoColor: true})
	logger.Warn("Package manifest could not be fully read", "package", "broken")
	out := buf.String()
	assert.Contains(t, out, "package=broken")
	assert.NotContains(t, out, "\x1b[")
}
