// Package superchunk implements the compressed container the round-trip
// harness appends chunks to: an ordered, append-only sequence of compressed
// chunks that remembers each chunk's uncompressed length and keeps running
// byte totals.
//
// Each chunk is compressed with the parameters the container's tuner picks
// for it, using block-parallel encoding from pkg/compression. A sealed
// container can be serialised to a self-describing frame (see frame.go) and
// reopened with ReadFrame.
//
//	engine := superchunk.NewEngine(logger)
//	sc, err := engine.NewContainer(superchunk.DefaultConfig())
//	defer sc.Close()
//	idx, err := sc.Append(chunk)
//	n, err := sc.DecompressChunk(idx, dst)
package superchunk

import (
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/compression"
	"github.com/ajitpratap0/chunkbench/pkg/tuner"
)

// Backend creates compressed containers.
type Backend interface {
	NewContainer(cfg Config) (Container, error)
}

// Container is an append-only sequence of compressed chunks.
type Container interface {
	// Append compresses chunk and stores it as the next record. It returns
	// the zero-based index of the stored chunk.
	Append(chunk []byte) (int, error)
	// DecompressChunk decodes chunk index into dst and returns the number
	// of bytes written.
	DecompressChunk(index int, dst []byte) (int, error)
	// NBytes is the total uncompressed size of the appended chunks.
	NBytes() int64
	// CBytes is the total compressed size of the appended chunks.
	CBytes() int64
	// NChunks is the number of appended chunks.
	NChunks() int
	// Seal forbids further appends.
	Seal()
	// Close releases the container's records.
	Close() error
}

// ChunkObserver is called after every successful append with the
// parameters the chunk was compressed with.
type ChunkObserver func(params tuner.Params, rawBytes, compressedBytes int, elapsed time.Duration)

// Digest is a BLAKE3 digest of a chunk's uncompressed bytes.
type Digest [32]byte

// Record is one stored chunk.
type Record struct {
	Params    tuner.Params
	Payload   []byte
	NBytes    int
	Digest    Digest
	HasDigest bool
}

// Engine is the Backend backed by pkg/compression.
type Engine struct {
	logger     *zap.Logger
	compressor *compression.ParallelCompressor
	observer   ChunkObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithCompressor sets the block compressor shared by the engine's containers.
func WithCompressor(pc *compression.ParallelCompressor) Option {
	return func(e *Engine) { e.compressor = pc }
}

// WithChunkObserver registers a callback for every appended chunk.
func WithChunkObserver(fn ChunkObserver) Option {
	return func(e *Engine) { e.observer = fn }
}

// NewEngine creates an engine. A nil logger is replaced with a no-op logger.
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.compressor == nil {
		e.compressor = compression.NewParallelCompressor(logger, nil, nil)
	}
	return e
}

// NewContainer validates cfg and returns an empty container.
func (e *Engine) NewContainer(cfg Config) (Container, error) {
	return e.NewSchunk(cfg)
}

// NewSchunk is NewContainer returning the concrete type.
func (e *Engine) NewSchunk(cfg Config) (*Schunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone()
	return &Schunk{
		cfg:        cfg,
		tuner:      cfg.NewTuner(e.logger),
		compressor: e.compressor,
		observer:   e.observer,
		logger:     e.logger,
	}, nil
}

// Schunk is the Container implementation.
type Schunk struct {
	cfg        Config
	tuner      tuner.Tuner
	compressor *compression.ParallelCompressor
	observer   ChunkObserver
	logger     *zap.Logger

	records []Record
	nbytes  int64
	cbytes  int64
	sealed  bool
	closed  bool
}

// Config returns the container's configuration.
func (s *Schunk) Config() Config {
	return s.cfg
}

// Append compresses chunk with the tuner's next parameters.
func (s *Schunk) Append(chunk []byte) (int, error) {
	if s.closed {
		return -1, bencherrors.New(bencherrors.ErrorTypeInvalidState, "append to closed container")
	}
	if s.sealed {
		return -1, bencherrors.New(bencherrors.ErrorTypeInvalidState, "append to sealed container").
			WithDetail("chunks", len(s.records))
	}

	params := s.tuner.Next()
	params.Threads = max(1, min(params.Threads, s.cfg.ThreadsCompress))

	start := time.Now()
	payload, err := s.compressor.CompressChunk(nil, chunk, compression.ParallelConfig{
		Algorithm: params.Algorithm,
		Level:     params.Level,
		Filter:    params.Filter,
		TypeSize:  s.cfg.TypeSize,
		BlockSize: s.cfg.BlockSize,
		Workers:   params.Threads,
	})
	elapsed := time.Since(start)
	if err != nil {
		return -1, bencherrors.Wrap(err, bencherrors.TypeOf(err), "compress chunk").
			WithDetail("chunk", len(s.records)).
			WithDetail("params", params.String())
	}

	s.tuner.Observe(tuner.Observation{
		Params:          params,
		RawBytes:        len(chunk),
		CompressedBytes: len(payload),
		Duration:        elapsed,
	})

	rec := Record{Params: params, Payload: payload, NBytes: len(chunk)}
	if s.cfg.Checksums {
		rec.Digest = blake3.Sum256(chunk)
		rec.HasDigest = true
	}
	s.records = append(s.records, rec)
	s.nbytes += int64(len(chunk))
	s.cbytes += int64(len(payload))

	if s.observer != nil {
		s.observer(params, len(chunk), len(payload), elapsed)
	}
	return len(s.records) - 1, nil
}

// DecompressChunk decodes chunk index into dst.
func (s *Schunk) DecompressChunk(index int, dst []byte) (int, error) {
	if s.closed {
		return 0, bencherrors.New(bencherrors.ErrorTypeInvalidState, "decompress from closed container")
	}
	if index < 0 || index >= len(s.records) {
		return 0, bencherrors.Newf(bencherrors.ErrorTypeInvalidState,
			"chunk %d out of range [0, %d)", index, len(s.records))
	}

	rec := &s.records[index]
	n, err := s.compressor.DecompressChunk(dst, rec.Payload, s.cfg.ThreadsDecompress)
	if err != nil {
		return 0, bencherrors.Wrap(err, bencherrors.TypeOf(err), "decompress chunk").
			WithDetail("chunk", index).
			WithDetail("params", rec.Params.String())
	}

	if rec.HasDigest && Digest(blake3.Sum256(dst[:n])) != rec.Digest {
		return n, bencherrors.New(bencherrors.ErrorTypeCodec, "chunk checksum mismatch").
			WithDetail("chunk", index)
	}
	return n, nil
}

// NBytes is the total uncompressed size.
func (s *Schunk) NBytes() int64 { return s.nbytes }

// CBytes is the total compressed size.
func (s *Schunk) CBytes() int64 { return s.cbytes }

// NChunks is the number of stored chunks.
func (s *Schunk) NChunks() int { return len(s.records) }

// Sealed reports whether Seal has been called.
func (s *Schunk) Sealed() bool { return s.sealed }

// Seal forbids further appends. Sealing twice is harmless.
func (s *Schunk) Seal() {
	if !s.sealed {
		s.logger.Debug("container sealed",
			zap.Int("chunks", len(s.records)),
			zap.Int64("nbytes", s.nbytes),
			zap.Int64("cbytes", s.cbytes),
			zap.Bool("tuner_converged", s.tuner.Converged()))
	}
	s.sealed = true
}

// Record returns stored chunk i.
func (s *Schunk) Record(i int) Record {
	return s.records[i]
}

// Close drops the records. Further use fails with an invalid-state error.
func (s *Schunk) Close() error {
	s.records = nil
	s.closed = true
	return nil
}
