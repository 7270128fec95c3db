//go:build unix

package shard

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps |size| bytes of |file| shared and writable, so that stores into the view
// reach the file.
func mapFile(file *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}

func syncMapped(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}
