//go:build !linux && !darwin

package mmap

import "errors"

const supported = false

var errUnsupported = errors.New("mmap is not supported on this platform")

func mapReadOnly(uintptr, int) ([]byte, error) { return nil, errUnsupported }

func unmap([]byte) error { return nil }

func adviseSequential([]byte) error { return nil }

func adviseWillNeed([]byte) error { return nil }
