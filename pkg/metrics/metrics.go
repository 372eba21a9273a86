// Package metrics provides Prometheus instrumentation for chunkbench round
// trips. A Collector owns its own registry, so a run's numbers can be
// written to a node-exporter textfile when the batch ends without sharing
// global state between runs or tests.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("chunkbench")
//	collector.ObserveChunk("zstd", "default", elapsed)
//	collector.ObserveRoundTrip(srcBytes, compressedBytes, ctime, dtime)
//	collector.RecordFile(metrics.StatusVerified, "")
//	_ = collector.WriteTextfile("/var/lib/node_exporter/chunkbench.prom")
//
// # Metric Types
//
// Counter: files by outcome, bytes in and out, chunks by codec
// Histogram: compression and decompression durations, per-file ratios
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcomes used as the status label.
const (
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// Collector holds the run's metrics.
type Collector struct {
	registry *prometheus.Registry

	files              *prometheus.CounterVec   // status, error_type
	bytesIn            prometheus.Counter       // uncompressed bytes of verified files
	bytesOut           prometheus.Counter       // compressed bytes of verified files
	compressDuration   prometheus.Histogram     // per-file compression wall time
	decompressDuration prometheus.Histogram     // per-file decompression wall time
	ratio              prometheus.Histogram     // per-file compression ratio
	chunks             *prometheus.CounterVec   // algorithm, level
	chunkDuration      *prometheus.HistogramVec // algorithm
}

// NewCollector creates a collector whose metric names are prefixed with
// namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	durationBuckets := prometheus.ExponentialBuckets(0.0001, 4, 10) // 100µs .. ~26s

	return &Collector{
		registry: reg,
		files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_total",
				Help:      "Files processed, by outcome",
			},
			[]string{"status", "error_type"},
		),
		bytesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uncompressed_bytes_total",
			Help:      "Uncompressed bytes of verified files",
		}),
		bytesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compressed_bytes_total",
			Help:      "Compressed bytes of verified files",
		}),
		compressDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compress_duration_seconds",
			Help:      "Time spent appending one file's chunks",
			Buckets:   durationBuckets,
		}),
		decompressDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decompress_duration_seconds",
			Help:      "Time spent decompressing one file's chunks",
			Buckets:   durationBuckets,
		}),
		ratio: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compression_ratio",
			Help:      "Uncompressed over compressed size per verified file",
			Buckets:   []float64{1, 1.25, 1.5, 2, 3, 4, 6, 8, 16, 32, 64},
		}),
		chunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_appended_total",
				Help:      "Chunks appended, by codec",
			},
			[]string{"algorithm", "level"},
		),
		chunkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chunk_compress_duration_seconds",
				Help:      "Compression time of a single chunk",
				Buckets:   durationBuckets,
			},
			[]string{"algorithm"},
		),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordFile counts one processed file. errorType is empty for verified files.
func (c *Collector) RecordFile(status, errorType string) {
	c.files.WithLabelValues(status, errorType).Inc()
}

// ObserveRoundTrip records the totals of one verified file.
func (c *Collector) ObserveRoundTrip(srcBytes, compressedBytes int64, compress, decompress time.Duration) {
	c.bytesIn.Add(float64(srcBytes))
	c.bytesOut.Add(float64(compressedBytes))
	c.compressDuration.Observe(compress.Seconds())
	c.decompressDuration.Observe(decompress.Seconds())
	if compressedBytes > 0 {
		c.ratio.Observe(float64(srcBytes) / float64(compressedBytes))
	}
}

// ObserveChunk records one appended chunk.
func (c *Collector) ObserveChunk(algorithm, level string, elapsed time.Duration) {
	c.chunks.WithLabelValues(algorithm, level).Inc()
	c.chunkDuration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
}

// WriteTextfile writes the collected metrics in the text exposition format,
// atomically replacing path.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
