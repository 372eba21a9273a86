package chunkplan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

func TestNewRoundsDownToElementWidth(t *testing.T) {
	p, err := New(4096, 50, 8)
	require.NoError(t, err)

	assert.Equal(t, uint32(50), p.ChunkCount)
	assert.Equal(t, uint64(80), p.ChunkSize)
	assert.Equal(t, uint64(96), p.Remainder)
	assert.Equal(t, 51, p.TotalChunks())
}

func TestNewExactMultipleHasNoRemainderChunk(t *testing.T) {
	p, err := New(8000, 50, 8)
	require.NoError(t, err)

	assert.Equal(t, uint64(160), p.ChunkSize)
	assert.Zero(t, p.Remainder)
	assert.False(t, p.HasRemainder())
	assert.Equal(t, 50, p.TotalChunks())

	for r := range p.Ranges() {
		assert.NotZero(t, r.Length, "chunk %d", r.Index)
	}
}

func TestNewSmallFileCollapsesIntoRemainder(t *testing.T) {
	p, err := New(100, 50, 8)
	require.NoError(t, err)

	assert.Zero(t, p.ChunkCount)
	assert.Zero(t, p.ChunkSize)
	assert.Equal(t, uint64(100), p.Remainder)
	assert.Equal(t, 1, p.TotalChunks())

	r, err := p.Chunk(0)
	require.NoError(t, err)
	assert.Equal(t, Range{Index: 0, Offset: 0, Length: 100}, r)
}

func TestNewEmptyFile(t *testing.T) {
	p, err := New(0, 50, 8)
	require.NoError(t, err)

	assert.Zero(t, p.TotalChunks())
	count := 0
	for range p.Ranges() {
		count++
	}
	assert.Zero(t, count)
}

func TestNewRejectsInvalidArguments(t *testing.T) {
	_, err := New(10, 0, 8)
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeConfig))

	_, err = New(10, 4, 0)
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeConfig))
}

func TestChunkOutOfRange(t *testing.T) {
	p, err := New(4096, 50, 8)
	require.NoError(t, err)

	_, err = p.Chunk(51)
	assert.Error(t, err)
	_, err = p.Chunk(-1)
	assert.Error(t, err)
}

func TestPlanInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	widths := []uint32{1, 2, 4, 8, 16}

	for i := 0; i < 2000; i++ {
		total := uint64(rng.Int63n(1 << 24))
		target := uint32(rng.Intn(200) + 1)
		width := widths[rng.Intn(len(widths))]

		p, err := New(total, target, width)
		require.NoError(t, err)

		assert.Zero(t, p.ChunkSize%uint64(width))
		assert.Equal(t, total, p.ChunkSize*uint64(p.ChunkCount)+p.Remainder)

		var covered uint64
		for r := range p.Ranges() {
			assert.Equal(t, covered, r.Offset)
			assert.NotZero(t, r.Length)
			covered += r.Length
		}
		assert.Equal(t, total, covered)
	}
}

func TestRangesStopsEarly(t *testing.T) {
	p, err := New(4096, 50, 8)
	require.NoError(t, err)

	seen := 0
	for r := range p.Ranges() {
		seen++
		if r.Index == 4 {
			break
		}
	}
	assert.Equal(t, 5, seen)
}
