// Package pool provides typed object pooling and size-bucketed byte buffers
// for chunkbench's compression hot path. Block scratch buffers used by the
// parallel compressor come from here so that a 50-chunk round trip does not
// allocate a fresh destination for every block.
//
// Example usage:
//
//	buf := pool.GlobalBufferPool.Get(256 * 1024)
//	defer pool.GlobalBufferPool.Put(buf)
//
//	myPool := pool.New(
//	    func() *MyType { return &MyType{} },
//	    func(obj *MyType) { obj.Reset() },
//	)
//	obj := myPool.Get()
//	defer myPool.Put(obj)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and an optional reset hook.
// The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	new   func() T
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty. The reset function, if
// not nil, is called before an object goes back into the pool.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		new:   new,
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		atomic.AddInt64(&p.stats.misses, 1)
		return new()
	}
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	before := atomic.LoadInt64(&p.stats.misses)
	obj := p.pool.Get().(T)
	if atomic.LoadInt64(&p.stats.misses) == before {
		atomic.AddInt64(&p.stats.hits, 1)
	}
	return obj
}

// Put returns an object to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics. Hits and misses are approximate
// under concurrent use.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Allocated: atomic.LoadInt64(&p.stats.allocated),
		InUse:     atomic.LoadInt64(&p.stats.inUse),
		Hits:      atomic.LoadInt64(&p.stats.hits),
		Misses:    atomic.LoadInt64(&p.stats.misses),
	}
}

// Stats represents pool statistics for monitoring and optimization.
type Stats struct {
	// Allocated is the total number of objects created by the pool
	Allocated int64
	// InUse is the current number of objects checked out from the pool
	InUse int64
	// Hits is the number of retrievals served from pooled objects
	Hits int64
	// Misses is the number of times a new object had to be created
	Misses int64
}

// Add accumulates other into s.
func (s Stats) Add(other Stats) Stats {
	return Stats{
		Allocated: s.Allocated + other.Allocated,
		InUse:     s.InUse + other.InUse,
		Hits:      s.Hits + other.Hits,
		Misses:    s.Misses + other.Misses,
	}
}

// BufferPool manages byte buffer pooling with size-based buckets.
// Requests are served from the smallest bucket that fits; requests larger
// than the biggest bucket are allocated directly and never pooled.
type BufferPool struct {
	pools []*Pool[[]byte]
	sizes []int
}

// NewBufferPool creates a buffer pool with power-of-4 buckets from 512 bytes
// to 16MB: 512B, 2KB, 8KB, 32KB, 128KB, 512KB, 2MB, 8MB and 16MB.
func NewBufferPool() *BufferPool {
	return NewBufferPoolWithSizes([]int{
		512,
		2048,
		8192,
		32768,
		131072,
		524288,
		2097152,
		8388608,
		16777216,
	})
}

// NewBufferPoolWithSizes creates a buffer pool with the given bucket sizes,
// which must be ascending.
func NewBufferPoolWithSizes(sizes []int) *BufferPool {
	pools := make([]*Pool[[]byte], len(sizes))
	for i, size := range sizes {
		pools[i] = New(
			func() []byte {
				return make([]byte, size)
			},
			nil,
		)
	}

	return &BufferPool{
		pools: pools,
		sizes: sizes,
	}
}

// Get returns a buffer of length size. Its capacity may be larger, and its
// contents are whatever the previous user left behind.
//
// Example:
//
//	buf := bufferPool.Get(2048)
//	defer bufferPool.Put(buf)
func (p *BufferPool) Get(size int) []byte {
	for i, s := range p.sizes {
		if s >= size {
			buf := p.pools[i].Get()
			return buf[:size]
		}
	}

	// Fallback to allocation for very large buffers
	return make([]byte, size)
}

// Put returns a buffer obtained from Get. Buffers whose capacity does not
// match a bucket are left to the garbage collector.
func (p *BufferPool) Put(buf []byte) {
	size := cap(buf)

	for i, s := range p.sizes {
		if s == size {
			p.pools[i].Put(buf[:size])
			return
		}
	}
}

// Stats sums the statistics of every bucket.
func (p *BufferPool) Stats() Stats {
	var total Stats
	for _, bucket := range p.pools {
		total = total.Add(bucket.Stats())
	}
	return total
}

// GlobalBufferPool provides size-based byte buffer pooling shared by the
// compression workers.
var GlobalBufferPool = NewBufferPool()
