package util

import (
	"io"
	"os"
)

var _ io.ReadWriter = (*FileWrapper)(nil)

// FileWrapper reads and writes a file starting at an offset. It uses ReadAt/WriteAt
// exclusively, so the descriptor's own position is never moved and several wrappers can
// address one file at once.
type FileWrapper struct {
	file   *os.File
	offset uint64
}

func NewFileWrapperAt(file *os.File, offset uint64) FileWrapper {
	return FileWrapper{
		file:   file,
		offset: offset,
	}
}

func (me *FileWrapper) Read(b []byte) (n int, err error) {
	n, err = me.file.ReadAt(b, int64(me.offset))
	me.offset += uint64(n)
	return n, err
}

func (me *FileWrapper) Write(b []byte) (n int, err error) {
	n, err = me.file.WriteAt(b, int64(me.offset))
	me.offset += uint64(n)
	return n, err
}
