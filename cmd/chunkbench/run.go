package main

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkbench/internal/roundtrip"
	"github.com/ajitpratap0/chunkbench/pkg/config"
	"github.com/ajitpratap0/chunkbench/pkg/logger"
	"github.com/ajitpratap0/chunkbench/pkg/metrics"
	"github.com/ajitpratap0/chunkbench/pkg/observability"
	"github.com/ajitpratap0/chunkbench/pkg/performance"
)

const shutdownTimeout = 5 * time.Second

// run processes dir with cfg and writes the summary table to stdout. The
// returned error is non-nil when the walk did not complete or an output
// file could not be written.
func run(ctx context.Context, cfg config.Config, dir string, stdout io.Writer) error {
	sc, err := cfg.Compression.Superchunk()
	if err != nil {
		return err
	}
	headroom, err := cfg.Run.HeadroomBytes()
	if err != nil {
		return err
	}

	log, err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogFormat,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.ServiceVersion = version
	tracingCfg.OutputPath = cfg.Observability.TraceFile
	tracing, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("trace export incomplete", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("chunkbench")
	options := []roundtrip.Option{
		roundtrip.WithLogger(log),
		roundtrip.WithMetrics(collector),
		roundtrip.WithTracer(tracing.Tracer()),
		roundtrip.WithMemoryGuard(performance.NewMemoryGuard(headroom, nil)),
	}
	if monitor, err := performance.NewResourceMonitor(ctx); err != nil {
		log.Warn("resource monitoring unavailable", zap.Error(err))
	} else {
		options = append(options, roundtrip.WithResourceMonitor(monitor))
	}

	runner, err := roundtrip.NewRunner(roundtrip.Options{
		Chunks:      cfg.Run.Chunks,
		LedgerName:  cfg.Run.LedgerName,
		LoadMode:    cfg.Run.LoadMode,
		FramesDir:   cfg.Run.FramesDir,
		Compression: sc,
	}, options...)
	if err != nil {
		return err
	}

	summary, runErr := runner.RunDirectory(ctx, dir)
	if summary == nil {
		return runErr
	}
	summary.Config = cfg
	summary.RenderTable(stdout)

	if path := cfg.Run.SummaryJSON; path != "" {
		if err := summary.WriteJSON(path); err != nil {
			log.Error("failed to write summary", zap.String("path", path), zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
	}
	if path := cfg.Run.MetricsFile; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			log.Error("failed to write metrics", zap.String("path", path), zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
	}
	return runErr
}
