package roundtrip

import (
	"github.com/ajitpratap0/chunkbench/pkg/superchunk"
)

// memBackend stores chunks uncompressed and can be told to misbehave.
type memBackend struct {
	indexSkew   int  // added to every returned index
	skewFirst   bool // apply indexSkew to the first container only
	corruptByte bool // flip the first byte of chunk 0 on decompression
	shortRead   bool // decompress one byte less than stored
	failAppend  error
	created     int
}

func (b *memBackend) NewContainer(cfg superchunk.Config) (superchunk.Container, error) {
	b.created++
	skew := b.indexSkew
	if b.skewFirst && b.created > 1 {
		skew = 0
	}
	return &memContainer{backend: b, skew: skew}, nil
}

type memContainer struct {
	backend *memBackend
	skew    int
	chunks  [][]byte
	nbytes  int64
	sealed  bool
	closed  bool
}

func (c *memContainer) Append(chunk []byte) (int, error) {
	if c.backend.failAppend != nil {
		return 0, c.backend.failAppend
	}
	c.chunks = append(c.chunks, append([]byte(nil), chunk...))
	c.nbytes += int64(len(chunk))
	return len(c.chunks) - 1 + c.skew, nil
}

func (c *memContainer) DecompressChunk(index int, dst []byte) (int, error) {
	src := c.chunks[index]
	if c.backend.shortRead {
		src = src[:len(src)-1]
	}
	n := copy(dst, src)
	if c.backend.corruptByte && index == 0 && n > 0 {
		dst[0] ^= 0xFF
	}
	return n, nil
}

func (c *memContainer) NBytes() int64 { return c.nbytes }
func (c *memContainer) CBytes() int64 { return c.nbytes / 2 }
func (c *memContainer) NChunks() int  { return len(c.chunks) }
func (c *memContainer) Seal()         { c.sealed = true }
func (c *memContainer) Close() error  { c.closed = true; return nil }
