package compression

import (
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/pool"
)

// Chunk format (little endian):
//
//	magic "PCMP" | version u8 | algorithm u8 | level u8 | filter u8 |
//	type size u32 | block size u32 | raw length u64 | block count u32
//
// followed by block count entries of
//
//	flag u8 | payload length u32 | payload
//
// A flag of blockStored means the payload is the raw, unfiltered block.
const (
	chunkMagic      = "PCMP"
	chunkVersion    = 1
	chunkHeaderSize = 4 + 4 + 4 + 4 + 8 + 4
	blockHeaderSize = 1 + 4

	blockStored     byte = 0
	blockCompressed byte = 1

	// DefaultBlockSize is the block size used when ParallelConfig leaves it zero.
	DefaultBlockSize = 256 * 1024
)

// ParallelConfig selects how one chunk is encoded.
type ParallelConfig struct {
	Algorithm Algorithm
	Level     Level
	Filter    Filter
	TypeSize  int // element width for the shuffle filter and block rounding
	BlockSize int // 0 = DefaultBlockSize
	Workers   int // 0 = NumCPU
}

// ChunkHeader is the decoded header of an encoded chunk.
type ChunkHeader struct {
	Algorithm  Algorithm
	Level      Level
	Filter     Filter
	TypeSize   int
	BlockSize  int
	RawLength  int
	BlockCount int
}

// ParallelCompressor encodes chunks as independently compressed blocks so
// that several workers can share one chunk in both directions.
type ParallelCompressor struct {
	logger  *zap.Logger
	codecs  *Cache
	buffers *pool.BufferPool

	// Metrics
	bytesProcessed  int64
	blocksProcessed int64
	blocksStored    int64
}

type blockResult struct {
	flag    byte
	payload []byte
	scratch []byte
	err     error
}

// NewParallelCompressor creates a parallel compressor drawing codecs from
// cache and scratch space from buffers. Nil arguments select DefaultCache and
// pool.GlobalBufferPool.
func NewParallelCompressor(logger *zap.Logger, cache *Cache, buffers *pool.BufferPool) *ParallelCompressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = DefaultCache
	}
	if buffers == nil {
		buffers = pool.GlobalBufferPool
	}
	return &ParallelCompressor{
		logger:  logger,
		codecs:  cache,
		buffers: buffers,
	}
}

func normalize(config ParallelConfig) ParallelConfig {
	if config.TypeSize <= 0 {
		config.TypeSize = 1
	}
	if config.BlockSize <= 0 {
		config.BlockSize = DefaultBlockSize
	}
	if config.BlockSize >= config.TypeSize {
		config.BlockSize -= config.BlockSize % config.TypeSize
	} else {
		config.BlockSize = config.TypeSize
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return config
}

// CompressChunk appends the encoded form of src to dst.
func (pc *ParallelCompressor) CompressChunk(dst, src []byte, config ParallelConfig) ([]byte, error) {
	config = normalize(config)
	codec, err := pc.codecs.Get(Config{Algorithm: config.Algorithm, Level: config.Level})
	if err != nil {
		return dst, err
	}

	numBlocks := (len(src) + config.BlockSize - 1) / config.BlockSize
	results := make([]blockResult, numBlocks)

	work := func(i int) {
		start := i * config.BlockSize
		end := min(start+config.BlockSize, len(src))
		results[i] = pc.compressBlock(codec, src[start:end], config)
	}
	pc.run(numBlocks, config.Workers, work)

	defer func() {
		for i := range results {
			if results[i].scratch != nil {
				pc.buffers.Put(results[i].scratch)
			}
		}
	}()

	size := chunkHeaderSize
	for i := range results {
		if results[i].err != nil {
			return dst, results[i].err
		}
		size += blockHeaderSize + len(results[i].payload)
	}

	dst = grow(dst, size)
	dst = append(dst, chunkMagic...)
	dst = append(dst, chunkVersion, config.Algorithm.ID(), byte(config.Level), byte(config.Filter))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(config.TypeSize))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(config.BlockSize))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(src)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(numBlocks))

	stored := 0
	for i := range results {
		dst = append(dst, results[i].flag)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(results[i].payload)))
		dst = append(dst, results[i].payload...)
		if results[i].flag == blockStored {
			stored++
		}
	}

	atomic.AddInt64(&pc.bytesProcessed, int64(len(src)))
	atomic.AddInt64(&pc.blocksProcessed, int64(numBlocks))
	atomic.AddInt64(&pc.blocksStored, int64(stored))

	if ce := pc.logger.Check(zap.DebugLevel, "chunk encoded"); ce != nil {
		ce.Write(
			zap.String("algorithm", string(config.Algorithm)),
			zap.Stringer("filter", config.Filter),
			zap.Int("raw_bytes", len(src)),
			zap.Int("blocks", numBlocks),
			zap.Int("blocks_stored", stored),
			zap.Int("workers", min(config.Workers, numBlocks)),
		)
	}
	return dst, nil
}

// compressBlock filters and compresses one block, falling back to storing it
// raw when compression does not shrink it.
func (pc *ParallelCompressor) compressBlock(codec Codec, block []byte, config ParallelConfig) blockResult {
	input := block
	var filtered []byte
	if config.Filter == FilterShuffle && config.TypeSize > 1 {
		filtered = pc.buffers.Get(len(block))
		defer pc.buffers.Put(filtered)
		Shuffle(filtered, block, config.TypeSize)
		input = filtered
	}

	scratch := pc.buffers.Get(len(block))
	out, err := codec.Compress(scratch[:0], input)
	switch {
	case IsIncompressible(err):
		return blockResult{flag: blockStored, payload: block, scratch: scratch}
	case err != nil:
		return blockResult{scratch: scratch, err: err}
	case len(out) >= len(block):
		return blockResult{flag: blockStored, payload: block, scratch: scratch}
	}
	return blockResult{flag: blockCompressed, payload: out, scratch: scratch}
}

// ReadChunkHeader decodes the header of an encoded chunk.
func ReadChunkHeader(src []byte) (ChunkHeader, error) {
	if len(src) < chunkHeaderSize || string(src[0:4]) != chunkMagic {
		return ChunkHeader{}, bencherrors.New(bencherrors.ErrorTypeCodec, "corrupted chunk: bad header")
	}
	if src[4] != chunkVersion {
		return ChunkHeader{}, bencherrors.Newf(bencherrors.ErrorTypeCodec, "unsupported chunk version %d", src[4])
	}
	alg, err := AlgorithmFromID(src[5])
	if err != nil {
		return ChunkHeader{}, err
	}

	h := ChunkHeader{
		Algorithm:  alg,
		Level:      Level(src[6]),
		Filter:     Filter(src[7]),
		TypeSize:   int(binary.LittleEndian.Uint32(src[8:12])),
		BlockSize:  int(binary.LittleEndian.Uint32(src[12:16])),
		RawLength:  int(binary.LittleEndian.Uint64(src[16:24])),
		BlockCount: int(binary.LittleEndian.Uint32(src[24:28])),
	}
	if h.BlockSize <= 0 || h.TypeSize <= 0 {
		return ChunkHeader{}, bencherrors.New(bencherrors.ErrorTypeCodec, "corrupted chunk: zero block or type size")
	}
	if want := (h.RawLength + h.BlockSize - 1) / h.BlockSize; want != h.BlockCount {
		return ChunkHeader{}, bencherrors.Newf(bencherrors.ErrorTypeCodec,
			"corrupted chunk: %d blocks for %d bytes", h.BlockCount, h.RawLength)
	}
	return h, nil
}

type blockRef struct {
	flag    byte
	payload []byte
	start   int
	end     int
}

// DecompressChunk decodes src into dst using up to workers goroutines and
// returns the number of bytes written. dst must hold at least the chunk's
// raw length; the caller compares the returned count with what it expected.
func (pc *ParallelCompressor) DecompressChunk(dst, src []byte, workers int) (int, error) {
	h, err := ReadChunkHeader(src)
	if err != nil {
		return 0, err
	}
	if len(dst) < h.RawLength {
		return 0, bencherrors.Newf(bencherrors.ErrorTypeSizeMismatch,
			"destination holds %d bytes, chunk needs %d", len(dst), h.RawLength).
			WithDetail("got", len(dst)).
			WithDetail("expected", h.RawLength)
	}

	codec, err := pc.codecs.Get(Config{Algorithm: h.Algorithm, Level: h.Level})
	if err != nil {
		return 0, err
	}

	refs := make([]blockRef, h.BlockCount)
	offset := chunkHeaderSize
	for i := range refs {
		if offset+blockHeaderSize > len(src) {
			return 0, bencherrors.New(bencherrors.ErrorTypeCodec, "corrupted chunk: truncated block header")
		}
		flag := src[offset]
		length := int(binary.LittleEndian.Uint32(src[offset+1 : offset+5]))
		offset += blockHeaderSize
		if offset+length > len(src) {
			return 0, bencherrors.New(bencherrors.ErrorTypeCodec, "corrupted chunk: truncated block")
		}

		start := i * h.BlockSize
		refs[i] = blockRef{
			flag:    flag,
			payload: src[offset : offset+length],
			start:   start,
			end:     min(start+h.BlockSize, h.RawLength),
		}
		offset += length
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	errs := make([]error, len(refs))
	pc.run(len(refs), workers, func(i int) {
		errs[i] = pc.decompressBlock(codec, refs[i], dst[refs[i].start:refs[i].end], h)
	})
	for _, err := range errs {
		if err != nil {
			return 0, err
		}
	}

	return h.RawLength, nil
}

func (pc *ParallelCompressor) decompressBlock(codec Codec, ref blockRef, out []byte, h ChunkHeader) error {
	switch ref.flag {
	case blockStored:
		if len(ref.payload) != len(out) {
			return sizeError(None, len(ref.payload), len(out))
		}
		copy(out, ref.payload)
		return nil
	case blockCompressed:
	default:
		return bencherrors.Newf(bencherrors.ErrorTypeCodec, "corrupted chunk: unknown block flag %d", ref.flag)
	}

	if h.Filter != FilterShuffle || h.TypeSize <= 1 {
		_, err := codec.Decompress(out, ref.payload)
		return err
	}

	shuffled := pc.buffers.Get(len(out))
	defer pc.buffers.Put(shuffled)
	if _, err := codec.Decompress(shuffled, ref.payload); err != nil {
		return err
	}
	Unshuffle(out, shuffled, h.TypeSize)
	return nil
}

// run calls fn for every index in [0, n) on at most workers goroutines.
// Small jobs run inline.
func (pc *ParallelCompressor) run(n, workers int, fn func(int)) {
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	jobs := make(chan int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// GetMetrics returns the bytes and blocks encoded so far and how many of
// those blocks were stored raw.
func (pc *ParallelCompressor) GetMetrics() (bytesProcessed, blocksProcessed, blocksStored int64) {
	return atomic.LoadInt64(&pc.bytesProcessed),
		atomic.LoadInt64(&pc.blocksProcessed),
		atomic.LoadInt64(&pc.blocksStored)
}
