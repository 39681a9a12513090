package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_JSONFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger, err := New(Config{Version: "1.2.3", Level: "debug", OutputPaths: []string{path}})
	require.NoError(t, err)

	WithInvoice(WithRun(logger, "run-1"), "INV-1").Debug("rendered invoice", zap.Int("items", 2))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "rendered invoice", entry["msg"])
	assert.Equal(t, "invoicer", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "INV-1", entry["invoice_id"])
	assert.Equal(t, float64(2), entry["items"])
	assert.Contains(t, entry, "ts")
}

func TestNew_CallerAndServiceName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger, err := New(Config{ServiceName: "mailer", IncludeCaller: true, OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "mailer", entry["service"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	logger, err := New(Config{Level: "warn", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWithHelpers_NilLogger(t *testing.T) {
	assert.Nil(t, WithRun(nil, "x"))
	assert.Nil(t, WithInvoice(nil, "x"))
}
