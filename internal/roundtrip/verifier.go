package roundtrip

import (
	"bytes"
	"context"
	"time"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/chunkplan"
	"github.com/ajitpratap0/chunkbench/pkg/pool"
	"github.com/ajitpratap0/chunkbench/pkg/superchunk"
)

// DecompressAll replays plan against container, decompressing every chunk
// into its slice of a freshly allocated buffer. It returns the regenerated
// buffer and the summed decompression time; the caller releases the buffer.
func DecompressAll(ctx context.Context, container superchunk.Container, plan chunkplan.Plan) (*Buffer, time.Duration, error) {
	if n := container.NChunks(); n != plan.TotalChunks() {
		return nil, 0, bencherrors.New(bencherrors.ErrorTypeSizeMismatch, "container and plan disagree on chunk count").
			WithDetail("container_chunks", n).
			WithDetail("plan_chunks", plan.TotalChunks())
	}

	regen := newPooledBuffer(pool.GlobalBufferPool, int(plan.TotalBytes))
	var elapsed time.Duration

	for r := range plan.Ranges() {
		if err := ctx.Err(); err != nil {
			regen.Release()
			return nil, elapsed, err
		}

		dst := regen.Bytes()[r.Offset : r.Offset+r.Length]
		start := time.Now()
		n, err := container.DecompressChunk(r.Index, dst)
		elapsed += time.Since(start)
		if err != nil {
			regen.Release()
			return nil, elapsed, bencherrors.Wrap(err, bencherrors.TypeOf(err), "decompress chunk").
				WithDetail("chunk", r.Index)
		}
		if uint64(n) != r.Length {
			regen.Release()
			return nil, elapsed, bencherrors.New(bencherrors.ErrorTypeSizeMismatch, "decompressed chunk has unexpected length").
				WithDetail("chunk", r.Index).
				WithDetail("expected", r.Length).
				WithDetail("got", n)
		}
	}
	return regen, elapsed, nil
}

// Verify compares original and regenerated byte for byte and reports the
// first differing offset as an integrity error.
func Verify(original, regenerated []byte) error {
	if bytes.Equal(original, regenerated) {
		return nil
	}

	offset := min(len(original), len(regenerated))
	for i := 0; i < offset; i++ {
		if original[i] != regenerated[i] {
			offset = i
			break
		}
	}
	return bencherrors.Newf(bencherrors.ErrorTypeIntegrity, "regenerated data differs at offset %d", offset).
		WithDetail("offset", offset).
		WithDetail("original_bytes", len(original)).
		WithDetail("regenerated_bytes", len(regenerated))
}
