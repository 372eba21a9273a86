package mmap

import "syscall"

func adviseSequential(b []byte) error {
	return syscall.Madvise(b, syscall.MADV_SEQUENTIAL)
}

func adviseWillNeed(b []byte) error {
	return syscall.Madvise(b, syscall.MADV_WILLNEED)
}
