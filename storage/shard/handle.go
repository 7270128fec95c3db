package shard

import (
	"os"

	"github.com/navijation/njkv/metrics"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var ErrOutOfBounds = errors.New("location exceeds mapped shard size")

type Mode int

const (
	// ModeWrite handles append to the end of a shard file.
	ModeWrite Mode = iota
	// ModeRead handles map the whole shard file for random reads and in-place overwrites.
	ModeRead
)

func (me Mode) String() string {
	switch me {
	case ModeWrite:
		return metrics.ModeWrite
	case ModeRead:
		return metrics.ModeRead
	}
	return "unknown"
}

// Handle is an open shard file, in exactly one Mode.
type Handle interface {
	ID() uint64
	Mode() Mode
	// Flush pushes pending writes to the file without closing the handle.
	Flush() error
	Close() error
}

var (
	_ Handle = (*WriteHandle)(nil)
	_ Handle = (*ReadHandle)(nil)
)

type WriteHandle struct {
	id   uint64
	file *os.File

	// userspace tracking of the file size, which is also the next append offset
	size uint64
}

func openWriteHandle(id uint64, path string) (*WriteHandle, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	fileInfo, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &WriteHandle{
		id:   id,
		file: file,
		size: uint64(fileInfo.Size()),
	}, nil
}

func (me *WriteHandle) ID() uint64 { return me.id }
func (me *WriteHandle) Mode() Mode { return ModeWrite }

// Offset is the position the next Append will write at.
func (me *WriteHandle) Offset() uint64 {
	return me.size
}

// Append writes |content| at the end of the shard and returns the offset it was written at.
// On a partial write the returned count reflects the bytes that reached the file.
func (me *WriteHandle) Append(content []byte) (offset uint64, n int, err error) {
	offset = me.size
	n, err = me.file.Write(content)
	me.size += uint64(n)
	return offset, n, err
}

func (me *WriteHandle) Flush() error {
	return me.file.Sync()
}

func (me *WriteHandle) Close() error {
	if me.file == nil {
		return nil
	}
	err := me.file.Close()
	me.file = nil
	return err
}

type ReadHandle struct {
	id   uint64
	file *os.File
	data []byte
}

func openReadHandle(id uint64, path string) (*ReadHandle, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	fileInfo, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	out := &ReadHandle{id: id, file: file}

	// an empty file cannot be mapped; it also holds no records
	if size := fileInfo.Size(); size > 0 {
		if out.data, err = mapFile(file, int(size)); err != nil {
			_ = file.Close()
			return nil, errors.WithMessagef(err, "mapping %d bytes", size)
		}
	}
	return out, nil
}

func (me *ReadHandle) ID() uint64 { return me.id }
func (me *ReadHandle) Mode() Mode { return ModeRead }

// Size is the length of the mapped view, which is the file size when the handle was opened.
func (me *ReadHandle) Size() uint64 {
	return uint64(len(me.data))
}

// View returns the mapped bytes [offset, offset+length). The slice aliases the mapping and is
// only valid until the handle is closed.
func (me *ReadHandle) View(offset, length uint64) ([]byte, error) {
	if err := me.checkBounds(offset, length); err != nil {
		return nil, err
	}
	return me.data[offset : offset+length : offset+length], nil
}

// Overwrite replaces the mapped bytes starting at |offset| with |content|. The range must
// already exist in the shard.
func (me *ReadHandle) Overwrite(offset uint64, content []byte) error {
	if err := me.checkBounds(offset, uint64(len(content))); err != nil {
		return err
	}
	copy(me.data[offset:], content)
	return nil
}

func (me *ReadHandle) checkBounds(offset, length uint64) error {
	if end := offset + length; end < offset || end > uint64(len(me.data)) {
		return errors.Wrapf(ErrOutOfBounds,
			"shard %d: [%d, %d) of %d bytes", me.id, offset, end, len(me.data))
	}
	return nil
}

func (me *ReadHandle) Flush() error {
	if me.data == nil {
		return nil
	}
	return syncMapped(me.data)
}

// Close unmaps the view before closing the descriptor.
func (me *ReadHandle) Close() (err error) {
	if me.data != nil {
		err = multierr.Append(err, unmapFile(me.data))
		me.data = nil
	}
	if me.file != nil {
		err = multierr.Append(err, me.file.Close())
		me.file = nil
	}
	return err
}
