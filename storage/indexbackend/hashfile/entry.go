package hashfile

import (
	"io"

	"github.com/navijation/njkv/storage/location"
	"github.com/navijation/njkv/util"
)

// Chained bucket entry. The binary representation is as follows.
// ______________________________________________________________________
// | 8 bytes | 24 bytes          | 8 bytes  | (key size) bytes |
// |---------------------------------------------------------|
// | next    | shard/offset/len  | key size |       key        |
// |---------------------------------------------------------|
//
// |next| is the data-file offset of the next entry in the same bucket, or 0.
// The location is updated in place; nothing else in an entry ever changes.
type entry struct {
	Next     uint64
	Location location.Location
	Key      []byte
}

const locationFieldOffset = 8

func (me *entry) SizeOf() uint64 {
	return 8 + me.Location.SizeOf() + 8 + uint64(len(me.Key))
}

func (me *entry) WriteTo(writer io.Writer) (n int64, _ error) {
	dn, err := util.WriteUint64(writer, me.Next)
	n += int64(dn)
	if err != nil {
		return n, err
	}

	dn64, err := me.Location.WriteTo(writer)
	n += dn64
	if err != nil {
		return n, err
	}

	dn, err = util.WriteUint64(writer, uint64(len(me.Key)))
	n += int64(dn)
	if err != nil {
		return n, err
	}

	dn, err = writer.Write(me.Key)
	return n + int64(dn), err
}

func (me *entry) ReadFrom(reader io.Reader) (n int64, err error) {
	me.Next, n, err = readWord(reader, n)
	if err != nil {
		return n, err
	}

	dn64, err := me.Location.ReadFrom(reader)
	n += dn64
	if err != nil {
		return n, err
	}

	var keySize uint64
	if keySize, n, err = readWord(reader, n); err != nil {
		return n, err
	}

	me.Key = make([]byte, keySize)
	dn, err := io.ReadFull(reader, me.Key)
	return n + int64(dn), err
}

func readWord(reader io.Reader, n int64) (uint64, int64, error) {
	value, dn, err := util.ReadUint64(reader)
	return value, n + int64(dn), err
}
