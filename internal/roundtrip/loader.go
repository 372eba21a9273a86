package roundtrip

import (
	"context"
	"io"
	"os"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/mmap"
	"github.com/ajitpratap0/chunkbench/pkg/performance"
	"github.com/ajitpratap0/chunkbench/pkg/pool"
)

// Load modes.
const (
	LoadRead = "read"
	LoadMmap = "mmap"
)

// Buffer is a byte buffer owned by one file's round trip. Release returns
// its memory (to the pool, or by unmapping) and is safe to call more than
// once.
type Buffer struct {
	data    []byte
	release func() error
}

func newPooledBuffer(p *pool.BufferPool, size int) *Buffer {
	data := p.Get(size)
	return &Buffer{
		data: data,
		release: func() error {
			p.Put(data)
			return nil
		},
	}
}

// Bytes returns the buffer contents. The slice is invalid after Release.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the buffer length.
func (b *Buffer) Len() int { return len(b.data) }

// Release frees the buffer.
func (b *Buffer) Release() error {
	if b == nil || b.release == nil {
		return nil
	}
	release := b.release
	b.release = nil
	b.data = nil
	return release()
}

// Loader reads whole input files.
type Loader struct {
	mode    string
	guard   *performance.MemoryGuard
	buffers *pool.BufferPool
}

// NewLoader creates a loader for mode. A nil guard admits every file.
func NewLoader(mode string, guard *performance.MemoryGuard) (*Loader, error) {
	switch mode {
	case "", LoadRead:
		mode = LoadRead
	case LoadMmap:
		if !mmap.Supported {
			return nil, bencherrors.New(bencherrors.ErrorTypeConfig, "mmap load mode is not supported on this platform")
		}
	default:
		return nil, bencherrors.Newf(bencherrors.ErrorTypeConfig, "unsupported load mode %q", mode)
	}
	return &Loader{mode: mode, guard: guard, buffers: pool.GlobalBufferPool}, nil
}

// Load reads path in full. Empty files are rejected, and so are files whose
// round trip (input plus regenerated copy) would not fit the memory guard.
func (l *Loader) Load(ctx context.Context, path string) (*Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeFileLoad, "stat input").
			WithDetail("file", path)
	}
	size := info.Size()
	if size == 0 {
		return nil, bencherrors.New(bencherrors.ErrorTypeFileLoad, "empty input").
			WithDetail("file", path)
	}
	if err := l.guard.Admit(ctx, 2*uint64(size)); err != nil {
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeFileLoad, "admit input").
			WithDetail("file", path)
	}

	if l.mode == LoadMmap {
		return l.loadMapped(path)
	}
	return l.loadRead(path, size)
}

func (l *Loader) loadRead(path string, size int64) (*Buffer, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the directory walk
	if err != nil {
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeFileLoad, "open input").
			WithDetail("file", path)
	}
	defer f.Close()

	buf := newPooledBuffer(l.buffers, int(size))
	if _, err := io.ReadFull(f, buf.Bytes()); err != nil {
		buf.Release()
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeFileLoad, "read input").
			WithDetail("file", path).
			WithDetail("size", size)
	}
	return buf, nil
}

func (l *Loader) loadMapped(path string) (*Buffer, error) {
	r, err := mmap.NewReader(path)
	if err != nil {
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeFileLoad, "map input").
			WithDetail("file", path)
	}
	r.Prefetch(0, r.Len())
	return &Buffer{data: r.Bytes(), release: r.Close}, nil
}
