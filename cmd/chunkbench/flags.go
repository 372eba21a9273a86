package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/chunkbench/pkg/config"
)

// flagBinding ties a CLI flag to its profile key.
type flagBinding struct {
	flag string
	key  string
}

var bindings = []flagBinding{
	{"threads-compress", "compression.threads_compress"},
	{"threads-decompress", "compression.threads_decompress"},
	{"element-width", "compression.element_width"},
	{"tradeoff", "compression.tradeoff"},
	{"stop-after-stable", "compression.stop_after_stable"},
	{"repeat", "compression.repeat"},
	{"tuning-mode", "compression.tuning_mode"},
	{"inference-level", "compression.inference_level"},
	{"block-size", "compression.block_size"},
	{"checksums", "compression.checksums"},
	{"codec", "compression.codec"},
	{"level", "compression.level"},

	{"chunks", "run.chunks"},
	{"ledger-name", "run.ledger_name"},
	{"load-mode", "run.load_mode"},
	{"frames-dir", "run.frames_dir"},
	{"summary-json", "run.summary_json"},
	{"metrics-file", "run.metrics_file"},
	{"memory-headroom", "run.memory_headroom"},

	{"log-level", "observability.log_level"},
	{"log-format", "observability.log_format"},
	{"trace-file", "observability.trace_file"},
}

// registerFlags declares one flag per profile key. Flag defaults only
// document the built-in profile; the effective values are resolved by viper.
func registerFlags(fs *pflag.FlagSet) {
	d := config.Default()
	c, r, o := d.Compression, d.Run, d.Observability

	fs.Int("threads-compress", c.ThreadsCompress, "Maximum compression threads per chunk")
	fs.Int("threads-decompress", c.ThreadsDecompress, "Maximum decompression threads per chunk")
	fs.Int("element-width", c.ElementWidth, "Element width in bytes; chunk sizes are multiples of it")
	fs.StringSlice("tradeoff", formatFloats(c.Tradeoff), "Tuner weights in [0,1]: ratio[,speed[,threads]]")
	fs.Int("stop-after-stable", c.StopAfterStable, "Stop exploring after this many chunks without a better candidate")
	fs.String("repeat", c.Repeat, "Tuner exploration policy (once, all)")
	fs.String("tuning-mode", c.TuningMode, "Speed the tuner optimises for (comp, decomp, balanced)")
	fs.Int("inference-level", c.InferenceLevel, "Exploration passes over the candidates (-1 unbounded, 0 none)")
	fs.String("block-size", c.BlockSize, "Block size for parallel chunk encoding, e.g. 256KiB")
	fs.Bool("checksums", c.Checksums, "Store and verify a BLAKE3 digest per chunk")
	fs.String("codec", c.Codec, "Fixed codec (zstd, lz4, lz4hc, s2, snappy, gzip, deflate) or auto")
	fs.String("level", c.Level, "Level for a fixed codec (fastest, default, better, best)")

	fs.Int("chunks", r.Chunks, "Target number of chunks per file")
	fs.String("ledger-name", r.LedgerName, "Name of the ledger created inside the input directory")
	fs.String("load-mode", r.LoadMode, "How input files are loaded (read, mmap)")
	fs.String("frames-dir", r.FramesDir, "Write each verified container to this directory")
	fs.String("summary-json", r.SummaryJSON, "Write the run summary as JSON to this path")
	fs.String("metrics-file", r.MetricsFile, "Write Prometheus metrics in textfile format to this path")
	fs.String("memory-headroom", r.MemoryHeadroom, "Memory kept free when admitting a file, e.g. 64MiB")

	fs.String("log-level", o.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", o.LogFormat, "Log format (console, json)")
	fs.String("trace-file", o.TraceFile, "Write OpenTelemetry spans as JSON lines to this path")
}

func formatFloats(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%g", v)
	}
	return out
}

// resolveConfig layers the profile, CHUNKBENCH_* environment variables and
// explicitly set flags, then validates the result.
func resolveConfig(cmd *cobra.Command, profilePath string) (config.Config, error) {
	profile := config.Default()
	if profilePath != "" {
		var err error
		if profile, err = config.LoadProfile(profilePath); err != nil {
			return config.Config{}, err
		}
	}

	// Round-trip the profile through YAML so every key is known to viper and
	// AutomaticEnv can override keys the profile file never mentioned.
	data, err := yaml.Marshal(profile)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to marshal profile: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return config.Config{}, fmt.Errorf("failed to read profile: %w", err)
	}
	v.SetEnvPrefix("CHUNKBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		if err := v.BindPFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
			return config.Config{}, fmt.Errorf("failed to bind flag %s: %w", b.flag, err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
