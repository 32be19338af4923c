//go:build !unix

package mmap

import "errors"

// ErrUnsupported is returned on platforms without mmap support; callers
// fall back to reading the file.
var ErrUnsupported = errors.New("mmap: not supported on this platform")

func mapFD(fd uintptr, size int) ([]byte, error) {
	return nil, ErrUnsupported
}

func munmap(data []byte) error { return nil }

func advise(data []byte) {}
