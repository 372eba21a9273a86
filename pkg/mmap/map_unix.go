//go:build linux || darwin

package mmap

import "syscall"

const supported = true

// mapReadOnly maps length bytes of fd as a shared read-only region.
func mapReadOnly(fd uintptr, length int) ([]byte, error) {
	return syscall.Mmap(int(fd), 0, length, syscall.PROT_READ, syscall.MAP_SHARED)
}

func unmap(b []byte) error {
	return syscall.Munmap(b)
}
