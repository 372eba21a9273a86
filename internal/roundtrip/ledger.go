package roundtrip

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

// LedgerHeader is the first line of every ledger.
var LedgerHeader = []string{"srcSize", "compressedSize", "compressionRatio", "ctimeMs", "dtimeMs", "srcFile"}

// StatsRow is the measurement of one verified file.
type StatsRow struct {
	SrcBytes         int64
	CompressedBytes  int64
	Ratio            float64
	CompressTimeMs   float64
	DecompressTimeMs float64
	SourceFile       string
}

// NewStatsRow builds a row. A zero compressed size gives an infinite ratio.
func NewStatsRow(srcBytes, compressedBytes int64, compressTime, decompressTime time.Duration, sourceFile string) StatsRow {
	ratio := math.Inf(1)
	if compressedBytes != 0 {
		ratio = float64(srcBytes) / float64(compressedBytes)
	}
	return StatsRow{
		SrcBytes:         srcBytes,
		CompressedBytes:  compressedBytes,
		Ratio:            ratio,
		CompressTimeMs:   milliseconds(compressTime),
		DecompressTimeMs: milliseconds(decompressTime),
		SourceFile:       sourceFile,
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// Fields renders the row as ledger columns.
func (r StatsRow) Fields() []string {
	return []string{
		strconv.FormatInt(r.SrcBytes, 10),
		strconv.FormatInt(r.CompressedBytes, 10),
		formatFloat(r.Ratio),
		formatFloat(r.CompressTimeMs),
		formatFloat(r.DecompressTimeMs),
		r.SourceFile,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// StatsRecorder receives one row per verified file.
type StatsRecorder interface {
	Record(row StatsRow) error
	Close() error
}

// Ledger is the CSV stats file of one batch run. Every row is flushed as
// soon as it is recorded so an interrupted run keeps its finished rows.
type Ledger struct {
	path string
	file *os.File
	w    *csv.Writer
	rows int
}

// CreateLedger truncates or creates path and writes the header.
func CreateLedger(path string) (*Ledger, error) {
	f, err := os.Create(path) //nolint:gosec // G304: ledger lives in the input directory
	if err != nil {
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeLedger, "create ledger").
			WithDetail("path", path)
	}
	l := &Ledger{path: path, file: f, w: csv.NewWriter(f)}
	if err := l.write(LedgerHeader); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the ledger's file path.
func (l *Ledger) Path() string { return l.path }

// Rows returns the number of rows recorded.
func (l *Ledger) Rows() int { return l.rows }

// Record appends row and flushes it.
func (l *Ledger) Record(row StatsRow) error {
	if err := l.write(row.Fields()); err != nil {
		return err
	}
	l.rows++
	return nil
}

func (l *Ledger) write(fields []string) error {
	if l.file == nil {
		return bencherrors.New(bencherrors.ErrorTypeLedger, "write to closed ledger").
			WithDetail("path", l.path)
	}
	if err := l.w.Write(fields); err != nil {
		return bencherrors.Wrap(err, bencherrors.ErrorTypeLedger, "write ledger row").
			WithDetail("path", l.path)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return bencherrors.Wrap(err, bencherrors.ErrorTypeLedger, "flush ledger").
			WithDetail("path", l.path)
	}
	return nil
}

// Close closes the ledger file. Closing twice is harmless.
func (l *Ledger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return bencherrors.Wrap(err, bencherrors.ErrorTypeLedger, "close ledger").
			WithDetail("path", l.path)
	}
	return nil
}
