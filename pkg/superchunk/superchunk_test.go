package superchunk

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/compression"
	"github.com/ajitpratap0/chunkbench/pkg/tuner"
)

func raster(n int) []byte {
	data := make([]byte, n*8)
	for i := 0; i < n; i++ {
		v := 42 + 5*math.Cos(float64(i)/30)
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return data
}

func appendAll(t *testing.T, sc Container, data []byte, chunkSize int) {
	t.Helper()
	for off, i := 0, 0; off < len(data); off, i = off+chunkSize, i+1 {
		end := min(off+chunkSize, len(data))
		idx, err := sc.Append(data[off:end])
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}
}

func decompressAll(t *testing.T, sc Container, data []byte, chunkSize int) []byte {
	t.Helper()
	out := make([]byte, len(data))
	for i := 0; i < sc.NChunks(); i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(data))
		n, err := sc.DecompressChunk(i, out[start:end])
		require.NoError(t, err)
		require.Equal(t, end-start, n)
	}
	return out
}

func TestSchunkRoundTripAdaptive(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t))
	cfg := DefaultConfig()
	cfg.Checksums = true

	sc, err := engine.NewContainer(cfg)
	require.NoError(t, err)
	defer sc.Close()

	data := raster(20_000)
	appendAll(t, sc, data, 3200)
	sc.Seal()

	assert.Equal(t, 50, sc.NChunks())
	assert.Equal(t, int64(len(data)), sc.NBytes())
	assert.Positive(t, sc.CBytes())
	assert.Less(t, sc.CBytes(), sc.NBytes())

	assert.Equal(t, data, decompressAll(t, sc, data, 3200))
}

func TestSchunkFixedCodec(t *testing.T) {
	var seen []tuner.Params
	engine := NewEngine(nil, WithChunkObserver(func(p tuner.Params, raw, compressed int, _ time.Duration) {
		seen = append(seen, p)
		assert.Positive(t, raw)
		assert.Positive(t, compressed)
	}))

	cfg := DefaultConfig()
	cfg.Codec = compression.S2
	cfg.Level = compression.Better
	cfg.ThreadsCompress = 2
	cfg.BlockSize = 1024

	sc, err := engine.NewSchunk(cfg)
	require.NoError(t, err)

	data := raster(2000)
	appendAll(t, sc, data, 4000)

	require.Len(t, seen, 4)
	for _, p := range seen {
		assert.Equal(t, compression.S2, p.Algorithm)
		assert.Equal(t, compression.FilterShuffle, p.Filter)
		assert.Equal(t, 2, p.Threads)
	}
	assert.Equal(t, data, decompressAll(t, sc, data, 4000))
}

func TestSchunkSealRejectsAppend(t *testing.T) {
	sc, err := NewEngine(nil).NewContainer(DefaultConfig())
	require.NoError(t, err)

	_, err = sc.Append([]byte("abcdefgh"))
	require.NoError(t, err)
	sc.Seal()
	sc.Seal()

	_, err = sc.Append([]byte("abcdefgh"))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))
	assert.Equal(t, 1, sc.NChunks())
}

func TestSchunkClosedRejectsUse(t *testing.T) {
	sc, err := NewEngine(nil).NewContainer(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, sc.Close())

	_, err = sc.Append([]byte{1})
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))
	_, err = sc.DecompressChunk(0, make([]byte, 1))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))
}

func TestSchunkDecompressOutOfRange(t *testing.T) {
	sc, err := NewEngine(nil).NewContainer(DefaultConfig())
	require.NoError(t, err)

	_, err = sc.DecompressChunk(0, make([]byte, 8))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))
}

func TestSchunkDecompressShortDestination(t *testing.T) {
	sc, err := NewEngine(nil).NewContainer(DefaultConfig())
	require.NoError(t, err)

	_, err = sc.Append(raster(100))
	require.NoError(t, err)

	_, err = sc.DecompressChunk(0, make([]byte, 799))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeSizeMismatch))
}

func TestSchunkChecksumMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Checksums = true
	cfg.Codec = compression.None

	sc, err := NewEngine(nil).NewSchunk(cfg)
	require.NoError(t, err)

	_, err = sc.Append(bytes.Repeat([]byte{7}, 64))
	require.NoError(t, err)

	// Flip a byte of the stored raw block.
	payload := sc.records[0].Payload
	payload[len(payload)-1] ^= 0xFF

	_, err = sc.DecompressChunk(0, make([]byte, 64))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeCodec))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threads compress", func(c *Config) { c.ThreadsCompress = 0 }},
		{"threads decompress", func(c *Config) { c.ThreadsDecompress = 0 }},
		{"type size", func(c *Config) { c.TypeSize = 0 }},
		{"stable", func(c *Config) { c.StopAfterStable = 0 }},
		{"inference", func(c *Config) { c.InferenceLevel = -2 }},
		{"block size", func(c *Config) { c.BlockSize = -1 }},
		{"tradeoff range", func(c *Config) { c.Tradeoff = []float64{1.2} }},
		{"tradeoff empty", func(c *Config) { c.Tradeoff = nil }},
		{"mode", func(c *Config) { c.Mode = "fast" }},
		{"repeat", func(c *Config) { c.Repeat = "twice" }},
		{"codec", func(c *Config) { c.Codec = "brotli" }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeConfig), "got %v", err)

			_, err = NewEngine(nil).NewContainer(cfg)
			assert.Error(t, err)
		})
	}
}

func TestContainerOwnsConfig(t *testing.T) {
	cfg := DefaultConfig()
	sc, err := NewEngine(nil).NewSchunk(cfg)
	require.NoError(t, err)

	cfg.Tradeoff[0] = 0.1
	assert.Equal(t, 0.9, sc.Config().Tradeoff[0])
}
