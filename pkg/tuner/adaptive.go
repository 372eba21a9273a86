package tuner

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkbench/pkg/compression"
)

// Config configures the adaptive tuner.
type Config struct {
	Mode            Mode
	Tradeoff        []float64 // ratio weight, then speed weight, then fewer-threads weight
	StopAfterStable int       // exploratory chunks without a new best before settling
	Repeat          RepeatPolicy
	InferenceLevel  int // exploration passes over the candidates; -1 = unbounded, 0 = none
	MaxThreads      int
	TypeSize        int // element width; above 1 candidates use the shuffle filter
	Logger          *zap.Logger
}

const defaultStopAfterStable = 10

type phase int

const (
	phaseExplore phase = iota
	phaseThreads
	phaseSettled
)

func (p phase) String() string {
	switch p {
	case phaseExplore:
		return "explore"
	case phaseThreads:
		return "threads"
	default:
		return "settled"
	}
}

type weights struct {
	ratio   float64
	speed   float64
	threads float64
}

func weightsFrom(tradeoff []float64) weights {
	switch len(tradeoff) {
	case 0:
		return weights{ratio: 0.5, speed: 0.5}
	case 1:
		return weights{ratio: tradeoff[0], speed: 1 - tradeoff[0]}
	case 2:
		return weights{ratio: tradeoff[0], speed: tradeoff[1]}
	default:
		return weights{ratio: tradeoff[0], speed: tradeoff[1], threads: tradeoff[2]}
	}
}

type candidateStats struct {
	rawBytes        int64
	compressedBytes int64
	seconds         float64
	samples         int
}

func (s candidateStats) ratio() float64 {
	if s.compressedBytes == 0 {
		return 0
	}
	return float64(s.rawBytes) / float64(s.compressedBytes)
}

func (s candidateStats) speed() float64 {
	if s.seconds <= 0 {
		return 0
	}
	return float64(s.rawBytes) / s.seconds
}

// Adaptive explores a list of candidate codecs, scores each observed chunk
// with the tradeoff weights, settles on the best one and then lowers the
// thread count while that does not cost score.
//
// Adaptive is not safe for concurrent use; one session drives it.
type Adaptive struct {
	cfg        Config
	weights    weights
	logger     *zap.Logger
	candidates []Params
	stats      []candidateStats

	phase  phase
	cursor int
	passes int
	best   int
	stable int
	soft   int

	threads      int
	trialThreads int
	threadSpeed  float64
}

// NewAdaptive creates an adaptive tuner. Zero values select balanced mode,
// a stability window of 10 chunks and one thread.
func NewAdaptive(cfg Config) *Adaptive {
	if cfg.Mode == "" {
		cfg.Mode = ModeBalanced
	}
	if cfg.Repeat == "" {
		cfg.Repeat = RepeatAll
	}
	if cfg.StopAfterStable <= 0 {
		cfg.StopAfterStable = defaultStopAfterStable
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	candidates := Candidates(cfg.Mode, cfg.TypeSize)
	a := &Adaptive{
		cfg:        cfg,
		weights:    weightsFrom(cfg.Tradeoff),
		logger:     logger.With(zap.String("component", "tuner"), zap.String("mode", string(cfg.Mode))),
		candidates: candidates,
		stats:      make([]candidateStats, len(candidates)),
		threads:    cfg.MaxThreads,
		best:       -1,
	}
	if cfg.InferenceLevel == 0 {
		a.best = 0
		a.settle()
	}
	return a
}

// Candidates returns the codecs explored in mode, most promising first.
// The first entry is the mode's default.
func Candidates(mode Mode, typeSize int) []Params {
	filter := compression.FilterNone
	if typeSize > 1 {
		filter = compression.FilterShuffle
	}

	type codec struct {
		alg   compression.Algorithm
		level compression.Level
	}
	var codecs []codec
	switch mode {
	case ModeComp:
		codecs = []codec{
			{compression.LZ4, compression.Fastest},
			{compression.S2, compression.Default},
			{compression.Zstd, compression.Fastest},
			{compression.Snappy, compression.Default},
			{compression.LZ4, compression.Default},
			{compression.Zstd, compression.Default},
		}
	case ModeDecomp:
		codecs = []codec{
			{compression.LZ4, compression.Default},
			{compression.LZ4HC, compression.Better},
			{compression.LZ4HC, compression.Best},
			{compression.S2, compression.Better},
			{compression.Zstd, compression.Default},
			{compression.Zstd, compression.Better},
		}
	default:
		codecs = []codec{
			{compression.LZ4, compression.Default},
			{compression.Zstd, compression.Fastest},
			{compression.S2, compression.Default},
			{compression.LZ4HC, compression.Default},
			{compression.Zstd, compression.Default},
			{compression.Zstd, compression.Better},
		}
	}

	out := make([]Params, len(codecs))
	for i, c := range codecs {
		out[i] = Params{Algorithm: c.alg, Level: c.level, Filter: filter}
	}
	return out
}

// Next returns the parameters for the next chunk.
func (a *Adaptive) Next() Params {
	switch a.phase {
	case phaseExplore:
		p := a.candidates[a.cursor]
		p.Threads = a.cfg.MaxThreads
		return p
	case phaseThreads:
		p := a.candidates[a.best]
		p.Threads = a.trialThreads
		return p
	default:
		p := a.candidates[a.best]
		p.Threads = a.threads
		return p
	}
}

// Observe records the outcome of one chunk and advances the search.
func (a *Adaptive) Observe(obs Observation) {
	if obs.RawBytes <= 0 || obs.CompressedBytes <= 0 {
		return
	}

	switch a.phase {
	case phaseExplore:
		a.observeExplore(obs)
	case phaseThreads:
		a.observeThreads(obs)
	default:
		a.soft++
		if a.cfg.Repeat == RepeatAll && a.cfg.InferenceLevel != 0 && a.soft >= a.cfg.StopAfterStable {
			a.logger.Debug("reopening exploration", zap.Int("soft_chunks", a.soft))
			a.phase = phaseExplore
			a.cursor = 0
			a.passes = 0
			a.stable = 0
			a.soft = 0
			a.threads = a.cfg.MaxThreads
		}
	}
}

// Converged reports whether the tuner has settled.
func (a *Adaptive) Converged() bool {
	return a.phase == phaseSettled
}

// Best returns the currently preferred parameters.
func (a *Adaptive) Best() Params {
	if a.best < 0 {
		p := a.candidates[0]
		p.Threads = a.cfg.MaxThreads
		return p
	}
	p := a.candidates[a.best]
	p.Threads = a.threads
	return p
}

func (a *Adaptive) indexOf(p Params) int {
	for i, c := range a.candidates {
		if c.sameCodec(p) {
			return i
		}
	}
	return -1
}

func (a *Adaptive) observeExplore(obs Observation) {
	i := a.indexOf(obs.Params)
	if i < 0 {
		return
	}
	s := &a.stats[i]
	s.rawBytes += int64(obs.RawBytes)
	s.compressedBytes += int64(obs.CompressedBytes)
	s.seconds += obs.Duration.Seconds()
	s.samples++

	if best := a.argmax(); best != a.best {
		a.best = best
		a.stable = 0
	} else {
		a.stable++
	}

	a.cursor++
	if a.cursor == len(a.candidates) {
		a.cursor = 0
		a.passes++
	}

	if a.stable >= a.cfg.StopAfterStable ||
		(a.cfg.InferenceLevel > 0 && a.passes >= a.cfg.InferenceLevel) {
		a.settle()
	}
}

// argmax returns the explored candidate with the highest score. Ratios and
// speeds are normalised by the best seen so far, so the result can change
// as new candidates are measured.
func (a *Adaptive) argmax() int {
	var maxRatio, maxSpeed float64
	for _, s := range a.stats {
		if s.samples == 0 {
			continue
		}
		maxRatio = max(maxRatio, s.ratio())
		maxSpeed = max(maxSpeed, s.speed())
	}

	best, bestScore := a.best, -1.0
	for i, s := range a.stats {
		if s.samples == 0 {
			continue
		}
		score := 0.0
		if maxRatio > 0 {
			score += a.weights.ratio * s.ratio() / maxRatio
		}
		if maxSpeed > 0 {
			score += a.weights.speed * s.speed() / maxSpeed
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func (a *Adaptive) settle() {
	if a.best < 0 {
		a.best = 0
	}
	if a.threads > 1 && a.cfg.InferenceLevel != 0 {
		a.phase = phaseThreads
		a.trialThreads = a.threads - 1
		a.threadSpeed = a.stats[a.best].speed()
		return
	}
	a.finish()
}

func (a *Adaptive) finish() {
	a.phase = phaseSettled
	a.soft = 0
	a.logger.Debug("tuner converged", zap.Stringer("params", a.Best()))
}

// threadScore rates a thread count: measured speed relative to the current
// choice, plus a bonus for using fewer threads.
func (a *Adaptive) threadScore(speed float64, threads int) float64 {
	score := 0.0
	if a.threadSpeed > 0 {
		score += a.weights.speed * speed / a.threadSpeed
	}
	score += a.weights.threads * float64(a.cfg.MaxThreads-threads+1) / float64(a.cfg.MaxThreads)
	return score
}

func (a *Adaptive) observeThreads(obs Observation) {
	seconds := obs.Duration.Seconds()
	speed := 0.0
	if seconds > 0 {
		speed = float64(obs.RawBytes) / seconds
	}

	if a.threadScore(speed, a.trialThreads) < a.threadScore(a.threadSpeed, a.threads) {
		a.finish()
		return
	}

	a.threads = a.trialThreads
	a.threadSpeed = speed
	if a.threads <= 1 {
		a.finish()
		return
	}
	a.trialThreads = a.threads - 1
}
