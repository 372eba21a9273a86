// Package testutil provides fixtures for chunkbench tests: loggers,
// contexts, input directories filled with generated band files, and a
// ledger reader.
package testutil

import (
	"context"
	"encoding/csv"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a context that is cancelled after 30 seconds or when
// the test ends.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// InputDir creates a temporary directory holding files.
func InputDir(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		WriteFile(t, dir, name, data)
	}
	return dir
}

// Repeated returns n copies of b.
func Repeated(b byte, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = b
	}
	return data
}

// Sequence returns n bytes of a short periodic pattern, which every codec
// compresses.
func Sequence(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

// Random returns n pseudo-random bytes from seed. The output is
// incompressible and identical across runs.
func Random(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(rng.Uint32())
	}
	return data
}

// Float64Band returns n little-endian float64 samples of a smooth signal
// with a little noise, the shape of a raster band read row by row.
func Float64Band(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	data := make([]byte, 0, n*8)
	value := 100.0
	for i := 0; i < n; i++ {
		value += rng.Float64() - 0.5
		bits := math.Float64bits(value)
		for shift := 0; shift < 64; shift += 8 {
			data = append(data, byte(bits>>shift))
		}
	}
	return data
}

// ReadLedger reads a ledger and returns its header and rows.
func ReadLedger(t *testing.T, path string) (header []string, rows [][]string) {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // test fixture path
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records, "ledger has no header")
	return records[0], records[1:]
}
