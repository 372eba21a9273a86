// Package pool provides example usage of the pooled buffers.
package pool_test

import (
	"fmt"
	"sync"

	"github.com/ajitpratap0/chunkbench/pkg/pool"
)

// Example demonstrates borrowing a scratch buffer for one compressed block.
func Example() {
	buf := pool.GlobalBufferPool.Get(80)
	defer pool.GlobalBufferPool.Put(buf)

	fmt.Println(len(buf), cap(buf))

	// Output:
	// 80 512
}

// ExampleNew shows a custom typed pool with a reset hook.
func ExampleNew() {
	type scratch struct {
		offsets []int
	}

	p := pool.New(
		func() *scratch { return &scratch{offsets: make([]int, 0, 64)} },
		func(s *scratch) { s.offsets = s.offsets[:0] },
	)

	s := p.Get()
	s.offsets = append(s.offsets, 0, 80, 160)
	fmt.Println(len(s.offsets))
	p.Put(s)

	fmt.Println(p.Stats().InUse)

	// Output:
	// 3
	// 0
}

// ExampleBufferPool shows concurrent use by block workers.
func ExampleBufferPool() {
	bp := pool.NewBufferPoolWithSizes([]int{1024, 4096})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := bp.Get(3000)
			defer bp.Put(buf)
			for j := range buf {
				buf[j] = byte(j)
			}
		}()
	}
	wg.Wait()

	fmt.Println(bp.Stats().InUse)

	// Output:
	// 0
}
