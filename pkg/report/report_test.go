package report

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkbench/pkg/json"
)

func sampleSummary() *Summary {
	s := NewSummary("data", "data/stats.txt")
	s.Add(FileResult{
		File: "data/a.bin", Status: StatusVerified,
		SrcBytes: 4 * mib, CompressedBytes: mib, Chunks: 51, Ratio: 4,
		CompressMs: 100, DecompressMs: 50,
	})
	s.Add(FileResult{File: "data/empty.bin", Status: StatusFailed, ErrorType: "file_load", Error: "empty input"})
	s.Add(FileResult{
		File: "data/b.bin", Status: StatusVerified,
		SrcBytes: 2 * mib, CompressedBytes: mib, Chunks: 51, Ratio: 2,
		CompressMs: 100, DecompressMs: 50,
	})
	s.Finish(true)
	return s
}

func TestSummaryTotals(t *testing.T) {
	s := sampleSummary()

	assert.Equal(t, 2, s.FilesVerified)
	assert.Equal(t, 1, s.FilesFailed)
	assert.Equal(t, int64(6*mib), s.SrcBytes)
	assert.Equal(t, int64(2*mib), s.CompressedBytes)
	assert.InDelta(t, 3.0, s.Ratio, 1e-9)
	assert.InDelta(t, 30.0, s.CompressMiBs, 1e-9)
	assert.InDelta(t, 60.0, s.DecompressMiBs, 1e-9)
	assert.True(t, s.Completed)
	assert.Len(t, s.Files, 3)
}

func TestSummaryInfiniteRatio(t *testing.T) {
	s := NewSummary("d", "d/stats.txt")
	s.Add(FileResult{File: "d/x", Status: StatusVerified, SrcBytes: 10, Ratio: math.Inf(1)})
	s.Finish(true)

	assert.Zero(t, s.Files[0].Ratio)
	assert.Zero(t, s.Ratio)

	assert.NoError(t, json.MarshalToWriter(io.Discard, s, ""))
}

func TestMiBPerSecond(t *testing.T) {
	assert.InDelta(t, 1.0, MiBPerSecond(mib, 1000), 1e-12)
	assert.Zero(t, MiBPerSecond(mib, 0))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	sampleSummary().RenderTable(&buf)
	out := buf.String()

	assert.Contains(t, out, "data/a.bin")
	assert.Contains(t, out, "4.0 MiB")
	assert.Contains(t, out, "4.00x")
	assert.Contains(t, out, "file_load")
	assert.Contains(t, out, "2 verified, 1 failed")
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	s := sampleSummary()
	s.Config = map[string]interface{}{"chunks": 50}
	require.NoError(t, s.WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, gojson.Unmarshal(data, &decoded))
	assert.Equal(t, float64(2), decoded["files_verified"])
	assert.Equal(t, float64(1), decoded["files_failed"])
	assert.Len(t, decoded["files"], 3)
	assert.Equal(t, float64(50), decoded["config"].(map[string]interface{})["chunks"])
}
