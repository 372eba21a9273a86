package mmap

import (
	"syscall"
	"unsafe"
)

// Values from <sys/mman.h>.
const (
	madvSequential = 2
	madvWillNeed   = 3
)

func madvise(b []byte, advice int) error {
	if len(b) == 0 {
		return nil
	}
	_, _, errno := syscall.Syscall(syscall.SYS_MADVISE, uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)), uintptr(advice))
	if errno != 0 {
		return errno
	}
	return nil
}

func adviseSequential(b []byte) error { return madvise(b, madvSequential) }

func adviseWillNeed(b []byte) error { return madvise(b, madvWillNeed) }
