// Package mmap provides read-only memory-mapped file access, used by the
// round-trip loader to hand a whole input file to the chunk planner without
// copying it onto the heap.
package mmap

import (
	"fmt"
	"os"
	"sync"
)

// Supported reports whether memory mapping is available on this platform.
const Supported = supported

// Reader is a read-only mapping of one whole file.
type Reader struct {
	file     *os.File
	data     []byte
	fileSize int64
	pageSize int

	mu sync.RWMutex
}

// NewReader maps filename read-only. Empty files cannot be mapped and are
// reported as an error.
func NewReader(filename string) (*Reader, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: path comes from the directory walk
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	fileSize := stat.Size()
	if fileSize == 0 {
		file.Close()
		return nil, fmt.Errorf("file is empty")
	}
	if int64(int(fileSize)) != fileSize {
		file.Close()
		return nil, fmt.Errorf("file too large to map: %d bytes", fileSize)
	}

	data, err := mapReadOnly(file.Fd(), int(fileSize))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}

	// The planner walks the file front to back.
	_ = adviseSequential(data)

	return &Reader{
		file:     file,
		data:     data,
		fileSize: fileSize,
		pageSize: os.Getpagesize(),
	}, nil
}

// Bytes returns the mapped data. The slice is valid until Close and must
// not be written to.
func (r *Reader) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Len returns the mapped length.
func (r *Reader) Len() int64 {
	return r.fileSize
}

// Prefetch asks the kernel to read the pages covering [start, end) ahead of
// use.
func (r *Reader) Prefetch(start, end int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.data == nil {
		return
	}

	// Align to page boundaries
	startPage := (start / int64(r.pageSize)) * int64(r.pageSize)
	endPage := ((end + int64(r.pageSize) - 1) / int64(r.pageSize)) * int64(r.pageSize)

	if startPage < 0 {
		startPage = 0
	}
	if endPage > r.fileSize {
		endPage = r.fileSize
	}
	if endPage <= startPage {
		return
	}

	_ = adviseWillNeed(r.data[startPage:endPage])
}

// Close unmaps the file and closes it. Closing twice is harmless.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error

	// Unmap the file
	if r.data != nil {
		err = unmap(r.data)
		r.data = nil
	}

	// Close the file
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}

	return err
}
