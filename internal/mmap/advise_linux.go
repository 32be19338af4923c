//go:build linux

package mmap

import "golang.org/x/sys/unix"

func advise(data []byte) {
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	_ = unix.Madvise(data, unix.MADV_DONTDUMP)
}
