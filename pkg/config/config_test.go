package config

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/compression"
	"github.com/ajitpratap0/chunkbench/pkg/tuner"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	sc, err := cfg.Compression.Superchunk()
	require.NoError(t, err)
	assert.Equal(t, 1, sc.ThreadsCompress)
	assert.Equal(t, 1, sc.ThreadsDecompress)
	assert.Equal(t, 8, sc.TypeSize)
	assert.Equal(t, []float64{0.9}, sc.Tradeoff)
	assert.Equal(t, 10, sc.StopAfterStable)
	assert.Equal(t, tuner.RepeatAll, sc.Repeat)
	assert.Equal(t, tuner.ModeBalanced, sc.Mode)
	assert.Equal(t, 2, sc.InferenceLevel)
	assert.Equal(t, compression.DefaultBlockSize, sc.BlockSize)
	assert.Equal(t, compression.Algorithm(""), sc.Codec, "auto means adaptive")

	headroom, err := cfg.Run.HeadroomBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(64<<20), headroom)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero compress threads", func(c *Config) { c.Compression.ThreadsCompress = 0 }},
		{"zero decompress threads", func(c *Config) { c.Compression.ThreadsDecompress = 0 }},
		{"zero element width", func(c *Config) { c.Compression.ElementWidth = 0 }},
		{"weight above one", func(c *Config) { c.Compression.Tradeoff = []float64{1.5} }},
		{"negative weight", func(c *Config) { c.Compression.Tradeoff = []float64{0.5, -0.1} }},
		{"NaN weight", func(c *Config) { c.Compression.Tradeoff = []float64{math.NaN()} }},
		{"no weights", func(c *Config) { c.Compression.Tradeoff = nil }},
		{"four weights", func(c *Config) { c.Compression.Tradeoff = []float64{0.1, 0.2, 0.3, 0.4} }},
		{"bad mode", func(c *Config) { c.Compression.TuningMode = "fast" }},
		{"bad repeat", func(c *Config) { c.Compression.Repeat = "twice" }},
		{"bad codec", func(c *Config) { c.Compression.Codec = "brotli" }},
		{"bad level", func(c *Config) { c.Compression.Level = "11" }},
		{"bad block size", func(c *Config) { c.Compression.BlockSize = "lots" }},
		{"inference below -1", func(c *Config) { c.Compression.InferenceLevel = -2 }},
		{"zero chunks", func(c *Config) { c.Run.Chunks = 0 }},
		{"chunks beyond uint32", func(c *Config) { c.Run.Chunks = math.MaxUint32 + 1 }},
		{"ledger path", func(c *Config) { c.Run.LedgerName = "sub/stats.txt" }},
		{"empty ledger", func(c *Config) { c.Run.LedgerName = " " }},
		{"bad load mode", func(c *Config) { c.Run.LoadMode = "stream" }},
		{"bad headroom", func(c *Config) { c.Run.MemoryHeadroom = "a bit" }},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeConfig), "got %v", err)
		})
	}
}

func TestSuperchunkPinnedCodec(t *testing.T) {
	cfg := Default().Compression
	cfg.Codec = "LZ4HC"
	cfg.Level = "best"
	cfg.BlockSize = "1 MiB"
	cfg.Checksums = true

	sc, err := cfg.Superchunk()
	require.NoError(t, err)
	assert.Equal(t, compression.LZ4HC, sc.Codec)
	assert.Equal(t, compression.Best, sc.Level)
	assert.Equal(t, 1<<20, sc.BlockSize)
	assert.True(t, sc.Checksums)

	// The returned configuration owns its weights.
	cfg.Tradeoff[0] = 0.1
	assert.Equal(t, 0.9, sc.Tradeoff[0])
}

func TestSaveAndLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")

	cfg := Default()
	cfg.Compression.Tradeoff = []float64{0.6, 0.3, 0.1}
	cfg.Compression.Codec = "zstd"
	cfg.Run.FramesDir = "/tmp/frames"
	cfg.Observability.LogFormat = "json"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("CB_TEST_CHUNKS", "12")
	t.Setenv("CB_TEST_MODE", "decomp")

	path := filepath.Join(t.TempDir(), "profile.yaml")
	writeFile(t, path, "run:\n  chunks: ${CB_TEST_CHUNKS}\ncompression:\n  tuning_mode: ${CB_TEST_MODE}\n")

	cfg, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Run.Chunks)
	assert.Equal(t, "decomp", cfg.Compression.TuningMode)
	assert.Equal(t, 8, cfg.Compression.ElementWidth, "omitted keys keep defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeConfig))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	writeFile(t, path, "run: [unterminated\n")
	_, err = LoadProfile(path)
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("CB_TEST_SET", "zstd")
	t.Setenv("CB_TEST_EMPTY", "")

	cases := map[string]string{
		"codec: ${CB_TEST_SET}":                "codec: zstd",
		"codec: ${CB_TEST_UNSET}":              "codec: ",
		"codec: ${CB_TEST_UNSET:-lz4}":         "codec: lz4",
		"codec: ${CB_TEST_EMPTY:-s2}":          "codec: s2",
		"codec: ${CB_TEST_SET:-lz4}":           "codec: zstd",
		"a: ${CB_TEST_SET}, b: ${CB_TEST_SET}": "a: zstd, b: zstd",
		"codec: ${CB_TEST_SET":                 "codec: ${CB_TEST_SET",
	}
	for in, want := range cases {
		assert.Equal(t, want, substituteEnvVars(in), in)
	}
}
