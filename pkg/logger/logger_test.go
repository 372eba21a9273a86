package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := New(Config{Level: "debug", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Debug("chunk appended", zap.Int("chunk", 3))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"debug"`)
	assert.Contains(t, string(data), `"message":"chunk appended"`)
	assert.Contains(t, string(data), `"chunk":3`)
}

func TestNewFiltersByLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := New(Config{Level: "warn", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)

	_, err = New(Config{Encoding: "xml"})
	assert.Error(t, err)
}

func TestInitReplacesGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global.log")
	logger, err := Init(Config{Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)
	assert.Same(t, logger, Get())

	With(zap.String("file", "a.bin")).Info("round trip verified")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"file":"a.bin"`)
}
