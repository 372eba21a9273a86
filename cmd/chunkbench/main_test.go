package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func resolve(t *testing.T, args ...string) config.Config {
	t.Helper()
	cmd := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags(args))
	profile, err := cmd.Flags().GetString("config")
	require.NoError(t, err)
	cfg, err := resolveConfig(cmd, profile)
	require.NoError(t, err)
	return cfg
}

func TestRequiresExactlyOneDirectory(t *testing.T) {
	_, err := execute(t)
	assert.Error(t, err)

	_, err = execute(t, "a", "b")
	assert.Error(t, err)
}

func TestRunWritesLedgerAndOutputs(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte{0x41}, 4096)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "band.bin"), data, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.bin"), nil, 0o600))

	out := t.TempDir()
	summaryPath := filepath.Join(out, "summary.json")
	metricsPath := filepath.Join(out, "chunkbench.prom")
	tracePath := filepath.Join(out, "trace.jsonl")

	stdout, err := execute(t,
		"--log-level", "error",
		"--summary-json", summaryPath,
		"--metrics-file", metricsPath,
		"--trace-file", tracePath,
		dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "band.bin")
	assert.Contains(t, stdout, "1 verified, 1 failed")

	ledger, err := os.ReadFile(filepath.Join(dir, "stats.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(ledger)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "srcSize,compressedSize,compressionRatio,ctimeMs,dtimeMs,srcFile", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "4096,"))

	summary, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), `"files_verified": 1`)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `chunkbench_files_total{error_type="file_load",status="failed"} 1`)

	trace, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	assert.Contains(t, string(trace), "roundtrip.file")
}

func TestRunMissingDirectoryFails(t *testing.T) {
	_, err := execute(t, "--log-level", "error", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeSetup))
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg := resolve(t)
	assert.Equal(t, config.Default(), cfg)
}

func TestResolveConfigPrecedence(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte(`
compression:
  codec: zstd
  threads_compress: 2
run:
  chunks: 10
  load_mode: mmap
`), 0o600))

	t.Setenv("CHUNKBENCH_RUN_CHUNKS", "20")
	t.Setenv("CHUNKBENCH_COMPRESSION_TRADEOFF", "0.5,0.3")

	cfg := resolve(t, "--config", profile, "--threads-compress", "4")

	assert.Equal(t, "zstd", cfg.Compression.Codec)         // profile
	assert.Equal(t, config.LoadModeMmap, cfg.Run.LoadMode) // profile
	assert.Equal(t, 20, cfg.Run.Chunks)                    // env over profile
	assert.Equal(t, 4, cfg.Compression.ThreadsCompress)    // flag over profile
	assert.Equal(t, []float64{0.5, 0.3}, cfg.Compression.Tradeoff)
	assert.Equal(t, "stats.txt", cfg.Run.LedgerName) // default
}

func TestResolveConfigFlagSlice(t *testing.T) {
	cfg := resolve(t, "--tradeoff", "0.2,0.4,0.6", "--chunks", "7")
	assert.Equal(t, []float64{0.2, 0.4, 0.6}, cfg.Compression.Tradeoff)
	assert.Equal(t, 7, cfg.Run.Chunks)
}

func TestResolveConfigRejectsInvalidValues(t *testing.T) {
	cmd := newRootCommand(&bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags([]string{"--codec", "rar"}))
	_, err := resolveConfig(cmd, "")
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeConfig))
}
