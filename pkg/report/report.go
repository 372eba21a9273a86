// Package report aggregates per-file round-trip results into a run summary
// and renders it as a table or a JSON document.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ajitpratap0/chunkbench/pkg/json"
)

// File outcomes.
const (
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

const mib = 1 << 20

// FileResult is the outcome of one file's round trip.
type FileResult struct {
	File            string  `json:"file"`
	Status          string  `json:"status"`
	ErrorType       string  `json:"error_type,omitempty"`
	Error           string  `json:"error,omitempty"`
	SrcBytes        int64   `json:"src_bytes"`
	CompressedBytes int64   `json:"compressed_bytes"`
	Chunks          int     `json:"chunks"`
	Ratio           float64 `json:"ratio,omitempty"` // zero when undefined
	CompressMs      float64 `json:"compress_ms"`
	DecompressMs    float64 `json:"decompress_ms"`
}

// Summary aggregates a run.
type Summary struct {
	Directory string    `json:"directory"`
	Ledger    string    `json:"ledger"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMs float64   `json:"elapsed_ms"`
	Completed bool      `json:"completed"`

	FilesVerified int `json:"files_verified"`
	FilesFailed   int `json:"files_failed"`

	SrcBytes        int64   `json:"src_bytes"`
	CompressedBytes int64   `json:"compressed_bytes"`
	Ratio           float64 `json:"ratio,omitempty"`
	CompressMs      float64 `json:"compress_ms"`
	DecompressMs    float64 `json:"decompress_ms"`
	CompressMiBs    float64 `json:"compress_mib_per_s"`
	DecompressMiBs  float64 `json:"decompress_mib_per_s"`
	PeakRSSBytes    uint64  `json:"peak_rss_bytes"`

	Config interface{}  `json:"config,omitempty"`
	Files  []FileResult `json:"files"`
}

// NewSummary starts a summary for directory.
func NewSummary(directory, ledger string) *Summary {
	return &Summary{
		Directory: directory,
		Ledger:    ledger,
		StartedAt: time.Now(),
		Files:     []FileResult{},
	}
}

// Add appends a file result and updates the totals. Failed files count
// towards FilesFailed only.
func (s *Summary) Add(r FileResult) {
	if math.IsInf(r.Ratio, 0) || math.IsNaN(r.Ratio) {
		r.Ratio = 0
	}
	s.Files = append(s.Files, r)
	if r.Status != StatusVerified {
		s.FilesFailed++
		return
	}
	s.FilesVerified++
	s.SrcBytes += r.SrcBytes
	s.CompressedBytes += r.CompressedBytes
	s.CompressMs += r.CompressMs
	s.DecompressMs += r.DecompressMs
}

// Finish computes the aggregate ratio and throughput.
func (s *Summary) Finish(completed bool) {
	s.Completed = completed
	s.ElapsedMs = float64(time.Since(s.StartedAt).Nanoseconds()) / 1e6
	s.Ratio = 0
	if s.CompressedBytes > 0 {
		s.Ratio = float64(s.SrcBytes) / float64(s.CompressedBytes)
	}
	s.CompressMiBs = MiBPerSecond(s.SrcBytes, s.CompressMs)
	s.DecompressMiBs = MiBPerSecond(s.SrcBytes, s.DecompressMs)
}

// MiBPerSecond converts a byte count and a duration in milliseconds into
// MiB/s. A zero duration yields zero.
func MiBPerSecond(bytes int64, ms float64) float64 {
	if ms <= 0 {
		return 0
	}
	return float64(bytes) / mib / (ms / 1000)
}

// WriteJSON writes the summary to path.
func (s *Summary) WriteJSON(path string) error {
	return json.WriteFile(path, s)
}

// RenderTable writes a human-readable table of the run to w.
func (s *Summary) RenderTable(w io.Writer) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Format.Footer = text.FormatDefault

	tbl.AppendHeader(table.Row{"File", "Status", "Size", "Compressed", "Ratio", "Comp MiB/s", "Decomp MiB/s"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	for _, f := range s.Files {
		if f.Status != StatusVerified {
			tbl.AppendRow(table.Row{f.File, f.ErrorType, "", "", "", "", ""})
			continue
		}
		tbl.AppendRow(table.Row{
			f.File,
			f.Status,
			humanize.IBytes(uint64(f.SrcBytes)),
			humanize.IBytes(uint64(f.CompressedBytes)),
			formatRatio(f.Ratio),
			fmt.Sprintf("%.1f", MiBPerSecond(f.SrcBytes, f.CompressMs)),
			fmt.Sprintf("%.1f", MiBPerSecond(f.SrcBytes, f.DecompressMs)),
		})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d verified, %d failed", s.FilesVerified, s.FilesFailed),
		"",
		humanize.IBytes(uint64(s.SrcBytes)),
		humanize.IBytes(uint64(s.CompressedBytes)),
		formatRatio(s.Ratio),
		fmt.Sprintf("%.1f", s.CompressMiBs),
		fmt.Sprintf("%.1f", s.DecompressMiBs),
	})

	tbl.Render()
}

func formatRatio(r float64) string {
	if r == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fx", r)
}
