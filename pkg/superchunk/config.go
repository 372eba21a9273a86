package superchunk

import (
	"slices"

	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/compression"
	"github.com/ajitpratap0/chunkbench/pkg/tuner"
)

// Config is the compression configuration of one container. It is passed by
// value and not modified after the container is created.
type Config struct {
	ThreadsCompress   int
	ThreadsDecompress int
	TypeSize          int // element width in bytes

	// Tuner knobs
	Tradeoff        []float64
	StopAfterStable int
	Repeat          tuner.RepeatPolicy
	Mode            tuner.Mode
	InferenceLevel  int

	BlockSize int  // 0 = compression.DefaultBlockSize
	Checksums bool // BLAKE3 digest per chunk, verified on decompression

	// Codec pins every chunk to one algorithm and bypasses the adaptive
	// tuner. Empty means adaptive.
	Codec compression.Algorithm
	Level compression.Level
}

// DefaultConfig returns single-threaded, 8-byte-element settings with a
// ratio-leaning adaptive tuner.
func DefaultConfig() Config {
	return Config{
		ThreadsCompress:   1,
		ThreadsDecompress: 1,
		TypeSize:          8,
		Tradeoff:          []float64{0.9},
		StopAfterStable:   10,
		Repeat:            tuner.RepeatAll,
		Mode:              tuner.ModeBalanced,
		InferenceLevel:    2,
		BlockSize:         compression.DefaultBlockSize,
		Level:             compression.Default,
	}
}

// Validate reports the first invalid setting as a config error.
func (c Config) Validate() error {
	switch {
	case c.ThreadsCompress < 1:
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "compression thread count must be at least 1, got %d", c.ThreadsCompress)
	case c.ThreadsDecompress < 1:
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "decompression thread count must be at least 1, got %d", c.ThreadsDecompress)
	case c.TypeSize < 1:
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "element width must be at least 1, got %d", c.TypeSize)
	case c.StopAfterStable < 1:
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "stop-after-stable must be at least 1, got %d", c.StopAfterStable)
	case c.InferenceLevel < -1:
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "inference level must be -1 or more, got %d", c.InferenceLevel)
	case c.BlockSize < 0:
		return bencherrors.Newf(bencherrors.ErrorTypeConfig, "block size must not be negative, got %d", c.BlockSize)
	}

	if err := tuner.ValidateTradeoff(c.Tradeoff); err != nil {
		return err
	}
	if _, err := tuner.ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if _, err := tuner.ParseRepeatPolicy(string(c.Repeat)); err != nil {
		return err
	}
	if c.Codec != "" {
		if _, err := compression.ParseAlgorithm(string(c.Codec)); err != nil {
			return err
		}
		if _, err := compression.ParseLevel(c.Level.String()); err != nil {
			return err
		}
	}
	return nil
}

// clone copies the slice fields so the container owns its configuration.
func (c Config) clone() Config {
	c.Tradeoff = slices.Clone(c.Tradeoff)
	return c
}

// NewTuner builds the tuner this configuration describes.
func (c Config) NewTuner(logger *zap.Logger) tuner.Tuner {
	if c.Codec != "" {
		filter := compression.FilterNone
		if c.TypeSize > 1 {
			filter = compression.FilterShuffle
		}
		return tuner.NewFixed(tuner.Params{
			Algorithm: c.Codec,
			Level:     c.Level,
			Filter:    filter,
			Threads:   c.ThreadsCompress,
		})
	}
	return tuner.NewAdaptive(tuner.Config{
		Mode:            c.Mode,
		Tradeoff:        c.Tradeoff,
		StopAfterStable: c.StopAfterStable,
		Repeat:          c.Repeat,
		InferenceLevel:  c.InferenceLevel,
		MaxThreads:      c.ThreadsCompress,
		TypeSize:        c.TypeSize,
		Logger:          logger,
	})
}
