package superchunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

func buildSealed(t *testing.T, checksums bool) (*Engine, *Schunk, []byte) {
	t.Helper()
	engine := NewEngine(nil)
	cfg := DefaultConfig()
	cfg.Checksums = checksums

	sc, err := engine.NewSchunk(cfg)
	require.NoError(t, err)

	data := raster(4000)
	appendAll(t, sc, data, 640)
	sc.Seal()
	return engine, sc, data
}

func TestFrameRoundTrip(t *testing.T) {
	for _, checksums := range []bool{false, true} {
		engine, sc, data := buildSealed(t, checksums)

		frame, err := sc.Frame()
		require.NoError(t, err)

		cfg := DefaultConfig()
		cfg.Checksums = true
		reopened, err := engine.ReadFrame(frame, cfg)
		require.NoError(t, err)

		assert.True(t, reopened.Sealed())
		assert.Equal(t, sc.NChunks(), reopened.NChunks())
		assert.Equal(t, sc.NBytes(), reopened.NBytes())
		assert.Equal(t, sc.CBytes(), reopened.CBytes())
		assert.Equal(t, checksums, reopened.Config().Checksums)
		assert.Equal(t, data, decompressAll(t, reopened, data, 640))

		_, err = reopened.Append([]byte{1})
		assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))
	}
}

func TestFrameIsDeterministic(t *testing.T) {
	_, sc, _ := buildSealed(t, true)

	a, err := sc.Frame()
	require.NoError(t, err)
	b, err := sc.Frame()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var buf bytes.Buffer
	n, err := sc.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(a)), n)
}

func TestFrameRequiresSeal(t *testing.T) {
	sc, err := NewEngine(nil).NewSchunk(DefaultConfig())
	require.NoError(t, err)

	_, err = sc.Frame()
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))
}

func TestReadFrameRejectsCorruption(t *testing.T) {
	engine, sc, _ := buildSealed(t, true)
	frame, err := sc.Frame()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"version", func(b []byte) []byte { b[4] = 2; return b }},
		{"short", func(b []byte) []byte { return b[:5] }},
		{"truncated index", func(b []byte) []byte { return b[:framePrefixSize+3] }},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-1] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := tt.mutate(append([]byte(nil), frame...))
			_, err := engine.ReadFrame(corrupt, DefaultConfig())
			assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeCodec), "got %v", err)
		})
	}
}

func TestRootOnlyWithChecksums(t *testing.T) {
	_, plain, _ := buildSealed(t, false)
	_, ok := plain.Root()
	assert.False(t, ok)

	_, summed, _ := buildSealed(t, true)
	root, ok := summed.Root()
	assert.True(t, ok)
	assert.NotEqual(t, Digest{}, root)
}
