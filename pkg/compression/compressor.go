// Package compression provides the block codecs chunkbench measures, a byte
// shuffle filter, and a block-parallel chunk encoder built on top of them.
//
// # Overview
//
// The compression package provides:
//   - Multiple compression algorithms (LZ4, LZ4HC, Zstd, S2, Snappy, Gzip, Deflate)
//   - Configurable compression levels (Fastest, Default, Better, Best)
//   - Append-style Compress and size-checked Decompress into caller buffers
//   - A shared Cache of codec instances keyed by algorithm and level
//   - ParallelCompressor: splits a chunk into blocks compressed by a worker group
//
// # Algorithm Selection
//
//   - LZ4: Extremely fast, modest ratio
//   - LZ4HC: LZ4 decode speed, slower encode, better ratio
//   - Snappy/S2: Fast, moderate compression
//   - Zstd: Best compression ratio, good speed
//   - Gzip/Deflate: Slow, wide compatibility
//
// # Basic Usage
//
//	codec, err := compression.NewCodec(compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Default,
//	})
//
//	// Compress appends to dst
//	compressed, err := codec.Compress(nil, data)
//
//	// Decompress fills a buffer of the original length
//	out := make([]byte, len(data))
//	n, err := codec.Decompress(out, compressed)
//
// # Performance Characteristics
//
// Speed (fastest to slowest): LZ4 > Snappy/S2 > Zstd > LZ4HC > Gzip/Deflate
// Compression ratio (best to worst): Zstd > Gzip/Deflate > LZ4HC > S2 > Snappy > LZ4
package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

// Algorithm represents a compression algorithm.
// Each algorithm has different trade-offs between speed and compression ratio.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// LZ4 represents lz4 block compression
	LZ4 Algorithm = "lz4"
	// LZ4HC represents high-compression lz4 block compression
	LZ4HC Algorithm = "lz4hc"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Deflate represents deflate compression
	Deflate Algorithm = "deflate"
)

// Algorithms lists every supported algorithm in wire-id order.
var Algorithms = []Algorithm{None, LZ4, LZ4HC, Zstd, S2, Snappy, Gzip, Deflate}

// ParseAlgorithm parses an algorithm name, case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Algorithms {
		if alg == known {
			return alg, nil
		}
	}
	return "", bencherrors.Newf(bencherrors.ErrorTypeConfig, "unsupported compression algorithm: %q", name)
}

// ID returns the one-byte identifier stored in chunk headers. These values
// are part of the frame format.
func (a Algorithm) ID() byte {
	for i, known := range Algorithms {
		if a == known {
			return byte(i)
		}
	}
	return 0xFF
}

// AlgorithmFromID is the inverse of Algorithm.ID.
func AlgorithmFromID(id byte) (Algorithm, error) {
	if int(id) >= len(Algorithms) {
		return "", bencherrors.Newf(bencherrors.ErrorTypeCodec, "unknown algorithm id %d", id)
	}
	return Algorithms[id], nil
}

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Levels lists the supported levels from fastest to strongest.
var Levels = []Level{Fastest, Default, Better, Best}

// String returns the lowercase level name used in config files and logs.
func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses a level name.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fastest":
		return Fastest, nil
	case "", "default":
		return Default, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return 0, bencherrors.Newf(bencherrors.ErrorTypeConfig, "unsupported compression level: %q", name)
	}
}

// Codec compresses and decompresses whole blocks held in memory.
// All implementations are safe for concurrent use.
type Codec interface {
	// Compress appends the compressed form of src to dst and returns the
	// extended slice. It returns an error satisfying IsIncompressible when
	// the codec gives up on src; callers then store the block raw.
	Compress(dst, src []byte) ([]byte, error)

	// Decompress decodes src into dst, which must be exactly the original
	// length. It returns the number of bytes written.
	Decompress(dst, src []byte) (int, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level
}

// Config represents codec configuration.
type Config struct {
	Algorithm Algorithm // Compression algorithm to use
	Level     Level     // Compression level
}

// DefaultConfig returns LZ4 at the default level, the cheapest codec that
// still compresses.
func DefaultConfig() Config {
	return Config{
		Algorithm: LZ4,
		Level:     Default,
	}
}

// NewCodec creates a codec for the given configuration.
//
// Example:
//
//	fast, _ := compression.NewCodec(compression.Config{
//	    Algorithm: compression.LZ4,
//	    Level:     compression.Fastest,
//	})
//
//	dense, _ := compression.NewCodec(compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Best,
//	})
func NewCodec(config Config) (Codec, error) {
	base := baseCodec{algorithm: config.Algorithm, level: config.Level}

	switch config.Algorithm {
	case None:
		return &noneCodec{baseCodec: base}, nil
	case LZ4:
		return &lz4Codec{baseCodec: base}, nil
	case LZ4HC:
		return &lz4Codec{baseCodec: base, hc: true, depth: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCodec(base)
	case S2:
		return &s2Codec{baseCodec: base}, nil
	case Snappy:
		return &snappyCodec{baseCodec: base}, nil
	case Gzip:
		return newGzipCodec(base), nil
	case Deflate:
		return newDeflateCodec(base), nil
	default:
		return nil, bencherrors.Newf(bencherrors.ErrorTypeConfig, "unsupported compression algorithm: %q", config.Algorithm)
	}
}

// Cache hands out shared codec instances per algorithm and level. Codecs
// with expensive setup (zstd) are built once per process.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	codecs map[Config]Codec
}

// NewCache creates an empty codec cache.
func NewCache() *Cache {
	return &Cache{codecs: make(map[Config]Codec)}
}

// Get returns the codec for config, creating it on first use.
func (c *Cache) Get(config Config) (Codec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if codec, ok := c.codecs[config]; ok {
		return codec, nil
	}
	codec, err := NewCodec(config)
	if err != nil {
		return nil, err
	}
	c.codecs[config] = codec
	return codec, nil
}

// DefaultCache is the process-wide codec cache.
var DefaultCache = NewCache()

var errIncompressible = errors.New("data is incompressible")

// IsIncompressible reports whether err means the codec could not shrink
// the block. The block should then be stored raw.
func IsIncompressible(err error) bool {
	return errors.Is(err, errIncompressible)
}

func codecError(alg Algorithm, op string, err error) error {
	return bencherrors.Wrap(err, bencherrors.ErrorTypeCodec, fmt.Sprintf("%s %s", alg, op))
}

func sizeError(alg Algorithm, got, want int) error {
	return bencherrors.Newf(bencherrors.ErrorTypeSizeMismatch, "%s decompress: got %d bytes, expected %d", alg, got, want).
		WithDetail("got", got).
		WithDetail("expected", want)
}

// grow returns dst with room for at least n more bytes past len(dst).
func grow(dst []byte, n int) []byte {
	if cap(dst)-len(dst) >= n {
		return dst
	}
	grown := make([]byte, len(dst), len(dst)+n)
	copy(grown, dst)
	return grown
}

// Base codec implementation
type baseCodec struct {
	algorithm Algorithm
	level     Level
}

// Algorithm returns the compression algorithm
func (bc *baseCodec) Algorithm() Algorithm {
	return bc.algorithm
}

// Level returns the compression level
func (bc *baseCodec) Level() Level {
	return bc.level
}

// None codec (no compression)
type noneCodec struct {
	baseCodec
}

func (nc *noneCodec) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

func (nc *noneCodec) Decompress(dst, src []byte) (int, error) {
	if len(src) != len(dst) {
		return 0, sizeError(None, len(src), len(dst))
	}
	return copy(dst, src), nil
}

// LZ4 codec: block mode, optionally high-compression
type lz4Codec struct {
	baseCodec
	hc    bool
	depth lz4.CompressionLevel
}

func (lc *lz4Codec) Compress(dst, src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	dst = grow(dst, bound)
	out := dst[len(dst) : len(dst)+bound]

	var (
		written int
		err     error
	)
	if lc.hc {
		written, err = lz4.CompressBlockHC(src, out, lc.depth, nil, nil)
	} else {
		written, err = lz4.CompressBlock(src, out, nil)
	}
	if err != nil {
		return dst, codecError(lc.algorithm, "compress", err)
	}

	// CompressBlock returns 0 when the data is incompressible.
	if written == 0 || written >= len(src) {
		return dst, errIncompressible
	}
	return dst[:len(dst)+written], nil
}

func (lc *lz4Codec) Decompress(dst, src []byte) (int, error) {
	read, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return 0, codecError(lc.algorithm, "decompress", err)
	}
	if read != len(dst) {
		return read, sizeError(lc.algorithm, read, len(dst))
	}
	return read, nil
}

// Zstd codec. zstd.Encoder and zstd.Decoder are safe for concurrent use
// through EncodeAll and DecodeAll, so one of each is shared.
type zstdCodec struct {
	baseCodec
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCodec(base baseCodec) (*zstdCodec, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(mapZstdLevel(base.level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, codecError(Zstd, "encoder init", err)
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, codecError(Zstd, "decoder init", err)
	}

	return &zstdCodec{baseCodec: base, encoder: encoder, decoder: decoder}, nil
}

func (zc *zstdCodec) Compress(dst, src []byte) ([]byte, error) {
	return zc.encoder.EncodeAll(src, dst), nil
}

func (zc *zstdCodec) Decompress(dst, src []byte) (int, error) {
	out, err := zc.decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, codecError(zc.algorithm, "decompress", err)
	}
	if len(out) != len(dst) {
		return len(out), sizeError(zc.algorithm, len(out), len(dst))
	}
	return len(out), nil
}

// S2 codec (Snappy-compatible but better compression)
type s2Codec struct {
	baseCodec
}

func (sc *s2Codec) Compress(dst, src []byte) ([]byte, error) {
	bound := s2.MaxEncodedLen(len(src))
	if bound < 0 {
		return dst, codecError(sc.algorithm, "compress", s2.ErrTooLarge)
	}
	dst = grow(dst, bound)
	out := dst[len(dst) : len(dst)+bound]

	var encoded []byte
	switch sc.level {
	case Better:
		encoded = s2.EncodeBetter(out, src)
	case Best:
		encoded = s2.EncodeBest(out, src)
	default:
		encoded = s2.Encode(out, src)
	}
	return dst[:len(dst)+len(encoded)], nil
}

func (sc *s2Codec) Decompress(dst, src []byte) (int, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return 0, codecError(sc.algorithm, "decompress", err)
	}
	if n != len(dst) {
		return 0, sizeError(sc.algorithm, n, len(dst))
	}
	out, err := s2.Decode(dst, src)
	if err != nil {
		return 0, codecError(sc.algorithm, "decompress", err)
	}
	return len(out), nil
}

// Snappy codec
type snappyCodec struct {
	baseCodec
}

func (sc *snappyCodec) Compress(dst, src []byte) ([]byte, error) {
	bound := snappy.MaxEncodedLen(len(src))
	if bound < 0 {
		return dst, codecError(sc.algorithm, "compress", snappy.ErrTooLarge)
	}
	dst = grow(dst, bound)
	encoded := snappy.Encode(dst[len(dst):len(dst)+bound], src)
	return dst[:len(dst)+len(encoded)], nil
}

func (sc *snappyCodec) Decompress(dst, src []byte) (int, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return 0, codecError(sc.algorithm, "decompress", err)
	}
	if n != len(dst) {
		return 0, sizeError(sc.algorithm, n, len(dst))
	}
	out, err := snappy.Decode(dst, src)
	if err != nil {
		return 0, codecError(sc.algorithm, "decompress", err)
	}
	return len(out), nil
}

// appendWriter is an io.Writer that appends to a caller-owned slice.
type appendWriter struct {
	buf []byte
}

func (w *appendWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// readExact fills dst from r and fails if r holds more or fewer bytes.
func readExact(alg Algorithm, r io.Reader, dst []byte) (int, error) {
	n, err := io.ReadFull(r, dst)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return n, sizeError(alg, n, len(dst))
		}
		return n, codecError(alg, "decompress", err)
	}

	var probe [1]byte
	extra, err := r.Read(probe[:])
	if extra > 0 {
		return n, sizeError(alg, n+extra, len(dst))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, codecError(alg, "decompress", err)
	}
	return n, nil
}

// Gzip codec
type gzipCodec struct {
	baseCodec
	writerPool sync.Pool
	readerPool sync.Pool
}

func newGzipCodec(base baseCodec) *gzipCodec {
	level := mapGzipLevel(base.level)

	gc := &gzipCodec{baseCodec: base}
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, level)
		return w
	}
	gc.readerPool.New = func() interface{} {
		return new(gzip.Reader)
	}
	return gc
}

func (gc *gzipCodec) Compress(dst, src []byte) ([]byte, error) {
	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	out := &appendWriter{buf: dst}
	w.Reset(out)
	if _, err := w.Write(src); err != nil {
		return dst, codecError(gc.algorithm, "compress", err)
	}
	if err := w.Close(); err != nil {
		return dst, codecError(gc.algorithm, "compress", err)
	}
	return out.buf, nil
}

func (gc *gzipCodec) Decompress(dst, src []byte) (int, error) {
	r := gc.readerPool.Get().(*gzip.Reader)
	defer gc.readerPool.Put(r)

	if err := r.Reset(bytes.NewReader(src)); err != nil {
		return 0, codecError(gc.algorithm, "decompress", err)
	}
	r.Multistream(false)
	return readExact(gc.algorithm, r, dst)
}

// Deflate codec
type deflateCodec struct {
	baseCodec
	writerPool sync.Pool
	readerPool sync.Pool
}

func newDeflateCodec(base baseCodec) *deflateCodec {
	level := mapDeflateLevel(base.level)

	dc := &deflateCodec{baseCodec: base}
	dc.writerPool.New = func() interface{} {
		w, _ := flate.NewWriter(nil, level)
		return w
	}
	dc.readerPool.New = func() interface{} {
		return flate.NewReader(bytes.NewReader(nil))
	}
	return dc
}

func (dc *deflateCodec) Compress(dst, src []byte) ([]byte, error) {
	w := dc.writerPool.Get().(*flate.Writer)
	defer dc.writerPool.Put(w)

	out := &appendWriter{buf: dst}
	w.Reset(out)
	if _, err := w.Write(src); err != nil {
		return dst, codecError(dc.algorithm, "compress", err)
	}
	if err := w.Close(); err != nil {
		return dst, codecError(dc.algorithm, "compress", err)
	}
	return out.buf, nil
}

func (dc *deflateCodec) Decompress(dst, src []byte) (int, error) {
	r := dc.readerPool.Get().(io.ReadCloser)
	defer dc.readerPool.Put(r)

	if err := r.(flate.Resetter).Reset(bytes.NewReader(src), nil); err != nil {
		return 0, codecError(dc.algorithm, "decompress", err)
	}
	return readExact(dc.algorithm, r, dst)
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Better:
		return 7
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Level1
	case Better:
		return lz4.Level7
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Better:
		return 7
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
