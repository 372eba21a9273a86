// Package roundtrip drives the chunked compression round trip: it walks an
// input directory, splits every regular file into planned chunks, appends
// them to a compressed container, decompresses them back, checks that the
// result is bit-exact and records one ledger row per verified file.
//
// # Failure policy
//
// Setup problems (missing directory, ledger creation) abort the run. Any
// error raised while processing one file is logged with the file name and
// its bencherrors type, and the walk moves on to the next file. Nothing is
// retried. Cancelling the context stops the walk between files or between
// chunks and is reported as a setup error because the walk did not
// complete.
//
// # Basic Usage
//
//	runner, err := roundtrip.NewRunner(opts, roundtrip.WithLogger(logger))
//	summary, err := runner.RunDirectory(ctx, "/data/bands")
package roundtrip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/chunkplan"
	"github.com/ajitpratap0/chunkbench/pkg/metrics"
	"github.com/ajitpratap0/chunkbench/pkg/observability"
	"github.com/ajitpratap0/chunkbench/pkg/performance"
	"github.com/ajitpratap0/chunkbench/pkg/report"
	"github.com/ajitpratap0/chunkbench/pkg/superchunk"
	"github.com/ajitpratap0/chunkbench/pkg/tuner"
)

// Options configures a batch run.
type Options struct {
	Chunks      int               // target chunk count per file
	LedgerName  string            // ledger file created in the input directory
	LoadMode    string            // LoadRead or LoadMmap
	FramesDir   string            // when set, verified containers are written here
	Compression superchunk.Config // shared by every file's session
}

// DefaultOptions returns 50 chunks per file, a stats.txt ledger and the
// default container configuration.
func DefaultOptions() Options {
	return Options{
		Chunks:      50,
		LedgerName:  "stats.txt",
		LoadMode:    LoadRead,
		Compression: superchunk.DefaultConfig(),
	}
}

// Option configures a Runner's collaborators.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.baseLogger = logger }
}

// WithBackend replaces the compression backend.
func WithBackend(backend superchunk.Backend) Option {
	return func(r *Runner) { r.backend = backend }
}

// WithMetrics records the run into collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = collector }
}

// WithTracer emits one span per file with child spans per phase.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

// WithMemoryGuard refuses files that would not fit in memory.
func WithMemoryGuard(guard *performance.MemoryGuard) Option {
	return func(r *Runner) { r.guard = guard }
}

// WithResourceMonitor samples RSS after every file for the summary.
func WithResourceMonitor(monitor *performance.ResourceMonitor) Option {
	return func(r *Runner) { r.monitor = monitor }
}

// Runner processes input directories one file at a time.
type Runner struct {
	opts       Options
	baseLogger *zap.Logger
	logger     *observability.StructuredLogger
	backend    superchunk.Backend
	loader     *Loader
	metrics    *metrics.Collector
	tracer     trace.Tracer
	guard      *performance.MemoryGuard
	monitor    *performance.ResourceMonitor
}

// NewRunner validates opts and builds a runner. Without WithBackend the
// runner compresses with a superchunk.Engine.
func NewRunner(opts Options, options ...Option) (*Runner, error) {
	if opts.Chunks < 1 {
		return nil, bencherrors.Newf(bencherrors.ErrorTypeConfig, "chunk count must be at least 1, got %d", opts.Chunks)
	}
	if int64(opts.Chunks) > math.MaxUint32 {
		return nil, bencherrors.Newf(bencherrors.ErrorTypeConfig, "chunk count must be at most %d, got %d", uint32(math.MaxUint32), opts.Chunks)
	}
	if opts.LedgerName == "" {
		opts.LedgerName = "stats.txt"
	}
	if err := opts.Compression.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{opts: opts}
	for _, o := range options {
		o(r)
	}
	if r.baseLogger == nil {
		r.baseLogger = zap.NewNop()
	}
	r.logger = observability.NewStructuredLogger(r.baseLogger, "roundtrip")

	loader, err := NewLoader(opts.LoadMode, r.guard)
	if err != nil {
		return nil, err
	}
	r.loader = loader

	if r.backend == nil {
		var engineOpts []superchunk.Option
		if r.metrics != nil {
			collector := r.metrics
			engineOpts = append(engineOpts, superchunk.WithChunkObserver(
				func(p tuner.Params, _, _ int, elapsed time.Duration) {
					collector.ObserveChunk(string(p.Algorithm), p.Level.String(), elapsed)
				}))
		}
		r.backend = superchunk.NewEngine(r.baseLogger, engineOpts...)
	}
	return r, nil
}

// RunDirectory processes every regular file in dir except the ledger, in
// lexical name order. The returned error is non-nil only when the walk did
// not complete; per-file failures are reported in the summary.
func (r *Runner) RunDirectory(ctx context.Context, dir string) (*report.Summary, error) {
	lister, err := NewLister(dir)
	if err != nil {
		return nil, err
	}

	ledgerPath := filepath.Join(dir, r.opts.LedgerName)
	ledger, err := CreateLedger(ledgerPath)
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	if r.opts.FramesDir != "" {
		if err := os.MkdirAll(r.opts.FramesDir, 0o755); err != nil {
			return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeSetup, "create frames directory").
				WithDetail("path", r.opts.FramesDir)
		}
	}

	entries, err := lister.Entries()
	if err != nil {
		return nil, err
	}

	summary := report.NewSummary(dir, ledgerPath)
	r.logger.Info("batch started",
		zap.String("directory", dir),
		zap.String("ledger", ledgerPath),
		zap.Int("chunks", r.opts.Chunks),
		zap.String("load_mode", r.loader.mode))

	runErr := r.walk(ctx, entries, ledger, summary)

	if err := ledger.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if r.monitor != nil {
		r.monitor.Sample(ctx)
		summary.PeakRSSBytes = r.monitor.PeakRSS()
	}
	summary.Finish(runErr == nil)

	fields := []zap.Field{
		zap.Int("verified", summary.FilesVerified),
		zap.Int("failed", summary.FilesFailed),
		zap.Int("ledger_rows", ledger.Rows()),
		zap.Float64("ratio", summary.Ratio),
	}
	if runErr != nil {
		r.logger.Error("batch aborted", append(fields, zap.Error(runErr))...)
		return summary, runErr
	}
	r.logger.Info("batch completed", fields...)
	return summary, nil
}

func (r *Runner) walk(ctx context.Context, entries iter.Seq[Entry], ledger StatsRecorder, summary *report.Summary) error {
	for entry := range entries {
		if err := ctx.Err(); err != nil {
			return interrupted(err)
		}
		if isLedger(entry, r.opts.LedgerName) {
			continue
		}
		if !isRegular(entry) {
			r.logger.Debug("skipping non-regular entry", zap.String("file", entry.Path))
			continue
		}

		result, row, err := r.processFile(ctx, entry.Path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return interrupted(ctxErr)
			}
			if bencherrors.IsFatal(err) {
				return err
			}
			r.recordFailure(summary, entry.Path, err)
			continue
		}

		if err := ledger.Record(row); err != nil {
			return err
		}
		summary.Add(result)
		if r.metrics != nil {
			r.metrics.RecordFile(metrics.StatusVerified, "")
			r.metrics.ObserveRoundTrip(row.SrcBytes, row.CompressedBytes,
				time.Duration(row.CompressTimeMs*float64(time.Millisecond)),
				time.Duration(row.DecompressTimeMs*float64(time.Millisecond)))
		}
		if r.monitor != nil {
			r.monitor.Sample(ctx)
		}
	}
	return nil
}

func interrupted(cause error) error {
	return bencherrors.Wrap(cause, bencherrors.ErrorTypeSetup, "walk interrupted")
}

func (r *Runner) recordFailure(summary *report.Summary, path string, err error) {
	errType := bencherrors.TypeOf(err)
	summary.Add(report.FileResult{
		File:      path,
		Status:    report.StatusFailed,
		ErrorType: string(errType),
		Error:     err.Error(),
	})
	if r.metrics != nil {
		r.metrics.RecordFile(metrics.StatusFailed, string(errType))
	}
}

// processFile runs one file's round trip and returns its summary entry and
// ledger row.
func (r *Runner) processFile(ctx context.Context, path string) (result report.FileResult, row StatsRow, err error) {
	ctx, span := observability.StartSpan(ctx, r.tracer, "roundtrip.file")
	span.SetAttribute("file", path)
	defer func() { span.Finish(err) }()

	op := r.logger.WithOperation("roundtrip", zap.String("file", path))
	defer func() {
		if err != nil && ctx.Err() == nil {
			op.LogError("round trip failed", err)
		}
	}()

	input, err := r.loader.Load(ctx, path)
	if err != nil {
		return result, row, err
	}
	defer input.Release()

	cfg := r.opts.Compression
	plan, err := chunkplan.New(uint64(input.Len()), uint32(r.opts.Chunks), uint32(cfg.TypeSize))
	if err != nil {
		return result, row, err
	}
	op.LogStart("round trip started",
		zap.Int("src_bytes", input.Len()),
		zap.Stringer("plan", plan))
	span.SetAttribute("src_bytes", input.Len())
	span.SetAttribute("chunks", plan.TotalChunks())

	session := NewSession(r.backend)
	defer session.Close()
	if err := session.Configure(cfg); err != nil {
		return result, row, err
	}

	if err := r.compress(ctx, session, plan, input.Bytes()); err != nil {
		return result, row, err
	}
	op.LogProgress("chunks compressed", 0.5,
		zap.Int("chunks", session.Chunks()),
		zap.Duration("compress_time", session.CompressTime()))

	container := session.Container()
	regen, dtime, err := r.decompress(ctx, container, plan)
	if err != nil {
		return result, row, err
	}
	defer regen.Release()

	if err := Verify(input.Bytes(), regen.Bytes()); err != nil {
		return result, row, err
	}

	row = NewStatsRow(container.NBytes(), container.CBytes(), session.CompressTime(), dtime, path)
	result = report.FileResult{
		File:            path,
		Status:          report.StatusVerified,
		SrcBytes:        row.SrcBytes,
		CompressedBytes: row.CompressedBytes,
		Chunks:          session.Chunks(),
		Ratio:           row.Ratio,
		CompressMs:      row.CompressTimeMs,
		DecompressMs:    row.DecompressTimeMs,
	}

	if r.opts.FramesDir != "" {
		if ferr := r.writeFrame(container, filepath.Base(path)); ferr != nil {
			op.Warn("frame not written", zap.Error(ferr))
		}
	}

	span.SetAttribute("compressed_bytes", row.CompressedBytes)
	span.SetAttribute("ratio", row.Ratio)
	op.LogComplete("round trip verified",
		zap.Int64("src_bytes", row.SrcBytes),
		zap.Int64("compressed_bytes", row.CompressedBytes),
		zap.Float64("ratio", row.Ratio),
		zap.Float64("ctime_ms", row.CompressTimeMs),
		zap.Float64("dtime_ms", row.DecompressTimeMs),
		zap.Float64("compress_mib_s", report.MiBPerSecond(row.SrcBytes, row.CompressTimeMs)),
		zap.Float64("decompress_mib_s", report.MiBPerSecond(row.SrcBytes, row.DecompressTimeMs)))
	return result, row, nil
}

func (r *Runner) compress(ctx context.Context, session *Session, plan chunkplan.Plan, data []byte) (err error) {
	_, span := observability.StartSpan(ctx, r.tracer, "roundtrip.compress")
	defer func() { span.Finish(err) }()

	for rng := range plan.Ranges() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := session.AppendChunk(data[rng.Offset : rng.Offset+rng.Length]); err != nil {
			return err
		}
	}
	if err := session.Seal(); err != nil {
		return err
	}
	span.SetAttribute("compress_ms", milliseconds(session.CompressTime()))
	return nil
}

func (r *Runner) decompress(ctx context.Context, container superchunk.Container, plan chunkplan.Plan) (regen *Buffer, elapsed time.Duration, err error) {
	ctx, span := observability.StartSpan(ctx, r.tracer, "roundtrip.decompress")
	defer func() { span.Finish(err) }()

	regen, elapsed, err = DecompressAll(ctx, container, plan)
	span.SetAttribute("decompress_ms", milliseconds(elapsed))
	return regen, elapsed, err
}

func (r *Runner) writeFrame(container superchunk.Container, name string) error {
	wt, ok := container.(io.WriterTo)
	if !ok {
		return errors.New("backend containers cannot be serialised")
	}
	path := filepath.Join(r.opts.FramesDir, name+superchunk.FrameExtension)
	f, err := os.Create(path) //nolint:gosec // G304: frames directory is operator supplied
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
