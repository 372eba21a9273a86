// Package tuner decides which codec, filter and thread count each chunk of a
// superchunk is compressed with.
//
// A Tuner is consulted once per chunk: Next returns the parameters for the
// chunk about to be appended and Observe reports how that chunk went. The
// container never inspects the decisions beyond applying them, so the
// heuristics here can change without touching the round-trip harness.
package tuner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/compression"
)

// Params are the per-chunk compression decisions.
type Params struct {
	Algorithm compression.Algorithm
	Level     compression.Level
	Filter    compression.Filter
	Threads   int
}

// String renders params for logs, e.g. "zstd/default+shuffle x2".
func (p Params) String() string {
	return fmt.Sprintf("%s/%s+%s x%d", p.Algorithm, p.Level, p.Filter, p.Threads)
}

// sameCodec reports whether p and o differ at most in thread count.
func (p Params) sameCodec(o Params) bool {
	return p.Algorithm == o.Algorithm && p.Level == o.Level && p.Filter == o.Filter
}

// Observation reports the outcome of compressing one chunk.
type Observation struct {
	Params          Params
	RawBytes        int
	CompressedBytes int
	Duration        time.Duration
}

// Ratio is RawBytes/CompressedBytes.
func (o Observation) Ratio() float64 {
	if o.CompressedBytes == 0 {
		return 0
	}
	return float64(o.RawBytes) / float64(o.CompressedBytes)
}

// Tuner picks compression parameters chunk by chunk.
type Tuner interface {
	// Next returns the parameters for the next chunk.
	Next() Params
	// Observe feeds back the result of the chunk compressed with the
	// parameters Next last returned.
	Observe(Observation)
	// Converged reports whether the tuner has settled on a choice.
	Converged() bool
}

// Mode orders the candidate codecs.
type Mode string

const (
	// ModeComp favours cheap compression.
	ModeComp Mode = "comp"
	// ModeDecomp favours cheap decompression.
	ModeDecomp Mode = "decomp"
	// ModeBalanced weighs both directions.
	ModeBalanced Mode = "balanced"
)

// ParseMode parses a tuning mode name.
func ParseMode(name string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(name))); m {
	case ModeComp, ModeDecomp, ModeBalanced:
		return m, nil
	case "":
		return ModeBalanced, nil
	default:
		return "", bencherrors.Newf(bencherrors.ErrorTypeConfig, "unsupported tuning mode: %q", name)
	}
}

// RepeatPolicy controls what happens after the tuner converges.
type RepeatPolicy string

const (
	// RepeatOnce keeps the converged choice for the rest of the container.
	RepeatOnce RepeatPolicy = "once"
	// RepeatAll periodically re-opens exploration.
	RepeatAll RepeatPolicy = "all"
)

// ParseRepeatPolicy parses a repeat policy name.
func ParseRepeatPolicy(name string) (RepeatPolicy, error) {
	switch r := RepeatPolicy(strings.ToLower(strings.TrimSpace(name))); r {
	case RepeatOnce, RepeatAll:
		return r, nil
	case "":
		return RepeatAll, nil
	default:
		return "", bencherrors.Newf(bencherrors.ErrorTypeConfig, "unsupported repeat policy: %q", name)
	}
}

// ValidateTradeoff checks that weights holds one to three values in [0, 1].
func ValidateTradeoff(weights []float64) error {
	if len(weights) < 1 || len(weights) > 3 {
		return bencherrors.Newf(bencherrors.ErrorTypeConfig,
			"tradeoff needs 1 to 3 weights, got %d", len(weights))
	}
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 || w > 1 {
			return bencherrors.Newf(bencherrors.ErrorTypeConfig,
				"tradeoff weight %d out of range [0, 1]: %v", i, w).
				WithDetail("index", i)
		}
	}
	return nil
}

// Fixed always returns the same parameters.
type Fixed struct {
	params Params
}

// NewFixed returns a tuner pinned to params. A zero thread count means one.
func NewFixed(params Params) *Fixed {
	if params.Threads <= 0 {
		params.Threads = 1
	}
	return &Fixed{params: params}
}

// Next returns the fixed parameters.
func (f *Fixed) Next() Params { return f.params }

// Observe is a no-op.
func (f *Fixed) Observe(Observation) {}

// Converged is always true.
func (f *Fixed) Converged() bool { return true }
