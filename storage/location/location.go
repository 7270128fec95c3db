package location

import (
	"fmt"
	"io"

	"github.com/navijation/njkv/util"
)

// Location is where a record's serialized bytes live. The binary representation is a
// fixed-stride triplet of big-endian words.
// ______________________________________
// | 8 bytes  | 8 bytes  | 8 bytes       |
// |-------------------------------------|
// | shard id | offset   | length        |
// |-------------------------------------|
type Location struct {
	Shard  uint64
	Offset uint64
	Length uint64
}

// Stride is the number of words per Location.
const Stride = 3

func (me Location) SizeOf() uint64 {
	return Stride * 8
}

// IsValid reports whether the Location addresses a record. Zero-length locations are absent.
func (me Location) IsValid() bool {
	return me.Length != 0
}

func (me Location) End() uint64 {
	return me.Offset + me.Length
}

func (me Location) String() string {
	return fmt.Sprintf("shard %d @%d (%d bytes)", me.Shard, me.Offset, me.Length)
}

func (me *Location) WriteTo(writer io.Writer) (n int64, _ error) {
	dn, err := util.WriteUint64s(writer, me.Shard, me.Offset, me.Length)
	return int64(dn), err
}

func (me *Location) ReadFrom(reader io.Reader) (n int64, _ error) {
	dn, err := util.ReadUint64s(reader, &me.Shard, &me.Offset, &me.Length)
	return int64(dn), err
}
