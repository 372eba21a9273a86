// Package chunkplan computes how a file is split into chunks before it is fed
// to a compression container.
//
// A plan has ChunkCount chunks of ChunkSize bytes followed, when Remainder is
// non-zero, by one trailing chunk of Remainder bytes. ChunkSize is always a
// multiple of the element width so that typed data (float64 rasters, for
// example) never straddles a chunk boundary.
//
//	p, err := chunkplan.New(4096, 50, 8)
//	// p.ChunkSize == 80, p.Remainder == 96, p.TotalChunks() == 51
//	for r := range p.Ranges() {
//	    container.Append(data[r.Offset : r.Offset+r.Length])
//	}
package chunkplan

import (
	"fmt"
	"iter"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

// Plan describes the chunk layout of one file.
type Plan struct {
	TotalBytes   uint64
	ElementWidth uint32
	ChunkCount   uint32
	ChunkSize    uint64
	Remainder    uint64
}

// Range is one planned chunk.
type Range struct {
	Index  int
	Offset uint64
	Length uint64
}

// New returns the plan for totalBytes split into targetChunkCount chunks whose
// size is rounded down to a multiple of elementWidth. When the rounded chunk
// size is zero the whole file becomes the remainder and ChunkCount is zero.
func New(totalBytes uint64, targetChunkCount, elementWidth uint32) (Plan, error) {
	if targetChunkCount == 0 {
		return Plan{}, bencherrors.New(bencherrors.ErrorTypeConfig, "target chunk count must be at least 1")
	}
	if elementWidth == 0 {
		return Plan{}, bencherrors.New(bencherrors.ErrorTypeConfig, "element width must be at least 1")
	}

	chunkSize := totalBytes / uint64(targetChunkCount)
	chunkSize -= chunkSize % uint64(elementWidth)

	if chunkSize == 0 {
		return Plan{
			TotalBytes:   totalBytes,
			ElementWidth: elementWidth,
			Remainder:    totalBytes,
		}, nil
	}

	return Plan{
		TotalBytes:   totalBytes,
		ElementWidth: elementWidth,
		ChunkCount:   targetChunkCount,
		ChunkSize:    chunkSize,
		Remainder:    totalBytes - chunkSize*uint64(targetChunkCount),
	}, nil
}

// TotalChunks is the number of chunks the plan emits, counting the trailing
// remainder chunk when there is one. A zero-byte plan emits none.
func (p Plan) TotalChunks() int {
	n := int(p.ChunkCount)
	if p.Remainder > 0 {
		n++
	}
	return n
}

// HasRemainder reports whether a trailing chunk follows the regular ones.
func (p Plan) HasRemainder() bool {
	return p.Remainder > 0
}

// Chunk returns the i-th planned chunk.
func (p Plan) Chunk(i int) (Range, error) {
	if i < 0 || i >= p.TotalChunks() {
		return Range{}, fmt.Errorf("chunk %d out of range [0, %d)", i, p.TotalChunks())
	}
	if i < int(p.ChunkCount) {
		return Range{Index: i, Offset: uint64(i) * p.ChunkSize, Length: p.ChunkSize}, nil
	}
	return Range{Index: i, Offset: uint64(p.ChunkCount) * p.ChunkSize, Length: p.Remainder}, nil
}

// Ranges yields every planned chunk in order.
func (p Plan) Ranges() iter.Seq[Range] {
	return func(yield func(Range) bool) {
		for i := 0; i < p.TotalChunks(); i++ {
			r, _ := p.Chunk(i)
			if !yield(r) {
				return
			}
		}
	}
}

// String renders the plan for logs.
func (p Plan) String() string {
	return fmt.Sprintf("%d x %d + %d", p.ChunkCount, p.ChunkSize, p.Remainder)
}
