package config

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/compression"
	"github.com/ajitpratap0/chunkbench/pkg/superchunk"
	"github.com/ajitpratap0/chunkbench/pkg/tuner"
)

// Load modes for input files.
const (
	LoadModeRead = "read"
	LoadModeMmap = "mmap"
)

// CodecAuto selects the adaptive tuner instead of a fixed codec.
const CodecAuto = "auto"

// Config is the complete run profile. Sections map to the top-level YAML
// keys; viper binds the CLI flags and CHUNKBENCH_ environment variables to
// the same keys.
type Config struct {
	// Compression knobs shared by every container in the run
	Compression CompressionConfig `yaml:"compression" mapstructure:"compression"`

	// Run controls the batch itself
	Run RunConfig `yaml:"run" mapstructure:"run"`

	// Observability settings for logs, traces and metrics
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// CompressionConfig describes the codec and tuning policy.
type CompressionConfig struct {
	// ThreadsCompress caps the workers used to compress one chunk
	ThreadsCompress int `yaml:"threads_compress" mapstructure:"threads_compress"`
	// ThreadsDecompress caps the workers used to decompress one chunk
	ThreadsDecompress int `yaml:"threads_decompress" mapstructure:"threads_decompress"`
	// ElementWidth is the element size in bytes; chunk sizes are multiples of it
	ElementWidth int `yaml:"element_width" mapstructure:"element_width"`
	// Tradeoff holds 1 to 3 weights in [0, 1]: ratio, speed, fewer threads
	Tradeoff []float64 `yaml:"tradeoff" mapstructure:"tradeoff"`
	// StopAfterStable ends exploration after this many chunks without a better candidate
	StopAfterStable int `yaml:"stop_after_stable" mapstructure:"stop_after_stable"`
	// Repeat is "once" or "all"
	Repeat string `yaml:"repeat" mapstructure:"repeat"`
	// TuningMode is "comp", "decomp" or "balanced"
	TuningMode string `yaml:"tuning_mode" mapstructure:"tuning_mode"`
	// InferenceLevel bounds exploration passes (-1 unbounded, 0 none)
	InferenceLevel int `yaml:"inference_level" mapstructure:"inference_level"`
	// BlockSize is a human-readable size such as "256KiB"
	BlockSize string `yaml:"block_size" mapstructure:"block_size"`
	// Checksums stores a BLAKE3 digest per chunk and checks it on decompression
	Checksums bool `yaml:"checksums" mapstructure:"checksums"`
	// Codec pins one algorithm, or "auto" for the adaptive tuner
	Codec string `yaml:"codec" mapstructure:"codec"`
	// Level applies to a pinned codec
	Level string `yaml:"level" mapstructure:"level"`
}

// RunConfig controls the batch.
type RunConfig struct {
	// Chunks is the target chunk count per file
	Chunks int `yaml:"chunks" mapstructure:"chunks"`
	// LedgerName is the stats file created inside the input directory
	LedgerName string `yaml:"ledger_name" mapstructure:"ledger_name"`
	// LoadMode is "read" or "mmap"
	LoadMode string `yaml:"load_mode" mapstructure:"load_mode"`
	// FramesDir receives one serialized container per verified file when set
	FramesDir string `yaml:"frames_dir" mapstructure:"frames_dir"`
	// SummaryJSON receives the run summary when set
	SummaryJSON string `yaml:"summary_json" mapstructure:"summary_json"`
	// MetricsFile receives a Prometheus textfile when set
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
	// MemoryHeadroom is kept free when admitting a file, e.g. "64MiB"
	MemoryHeadroom string `yaml:"memory_headroom" mapstructure:"memory_headroom"`
}

// ObservabilityConfig contains logging and tracing settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// LogFormat is "console" or "json"
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`
	// TraceFile receives OpenTelemetry spans when set
	TraceFile string `yaml:"trace_file" mapstructure:"trace_file"`
}

// Default returns the profile used when no file or flag overrides a key.
func Default() Config {
	return Config{
		Compression: CompressionConfig{
			ThreadsCompress:   1,
			ThreadsDecompress: 1,
			ElementWidth:      8,
			Tradeoff:          []float64{0.9},
			StopAfterStable:   10,
			Repeat:            string(tuner.RepeatAll),
			TuningMode:        string(tuner.ModeBalanced),
			InferenceLevel:    2,
			BlockSize:         "256KiB",
			Codec:             CodecAuto,
			Level:             compression.Default.String(),
		},
		Run: RunConfig{
			Chunks:         50,
			LedgerName:     "stats.txt",
			LoadMode:       LoadModeRead,
			MemoryHeadroom: "64MiB",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks every section and returns the first problem as a config
// error.
func (c Config) Validate() error {
	if _, err := c.Compression.Superchunk(); err != nil {
		return err
	}
	if err := c.Run.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.Observability.LogFormat) {
	case "", "console", "json":
	default:
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "log_format must be console or json, got %q", c.Observability.LogFormat)
	}
	return nil
}

// Superchunk converts the section into a validated container configuration.
func (c CompressionConfig) Superchunk() (superchunk.Config, error) {
	blockSize, err := parseSize("block_size", c.BlockSize)
	if err != nil {
		return superchunk.Config{}, err
	}
	mode, err := tuner.ParseMode(c.TuningMode)
	if err != nil {
		return superchunk.Config{}, err
	}
	repeat, err := tuner.ParseRepeatPolicy(c.Repeat)
	if err != nil {
		return superchunk.Config{}, err
	}
	level, err := compression.ParseLevel(c.Level)
	if err != nil {
		return superchunk.Config{}, err
	}

	var codec compression.Algorithm
	if name := strings.TrimSpace(c.Codec); name != "" && !strings.EqualFold(name, CodecAuto) {
		if codec, err = compression.ParseAlgorithm(name); err != nil {
			return superchunk.Config{}, err
		}
	}

	sc := superchunk.Config{
		ThreadsCompress:   c.ThreadsCompress,
		ThreadsDecompress: c.ThreadsDecompress,
		TypeSize:          c.ElementWidth,
		Tradeoff:          append([]float64(nil), c.Tradeoff...),
		StopAfterStable:   c.StopAfterStable,
		Repeat:            repeat,
		Mode:              mode,
		InferenceLevel:    c.InferenceLevel,
		BlockSize:         int(blockSize),
		Checksums:         c.Checksums,
		Codec:             codec,
		Level:             level,
	}
	if err := sc.Validate(); err != nil {
		return superchunk.Config{}, err
	}
	return sc, nil
}

// Validate checks the run section.
func (r RunConfig) Validate() error {
	if r.Chunks < 1 {
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "chunks must be at least 1, got %d", r.Chunks)
	}
	if int64(r.Chunks) > math.MaxUint32 {
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "chunks must be at most %d, got %d", uint32(math.MaxUint32), r.Chunks)
	}
	if strings.TrimSpace(r.LedgerName) == "" || strings.ContainsAny(r.LedgerName, `/\`) {
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "ledger_name must be a plain file name, got %q", r.LedgerName)
	}
	switch r.LoadMode {
	case LoadModeRead, LoadModeMmap:
	default:
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "load_mode must be read or mmap, got %q", r.LoadMode)
	}
	_, err := r.HeadroomBytes()
	return err
}

// HeadroomBytes parses MemoryHeadroom. An empty value means no headroom.
func (r RunConfig) HeadroomBytes() (uint64, error) {
	return parseSize("memory_headroom", r.MemoryHeadroom)
}

func parseSize(key, value string) (uint64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, bencherrors.Wrap(err, bencherrors.ErrorTypeConfig, "invalid "+key).
			WithDetail("value", value)
	}
	return n, nil
}
