package hashfile

import (
	"io"

	"github.com/navijation/njkv/util"
	"github.com/pkg/errors"
)

const (
	indexMagic uint64 = 0x6e6a6b7668736864 // "njkvhshd"
	dataMagic  uint64 = 0x6e6a6b7668736474 // "njkvhsdt"
	version    uint64 = 1
)

var ErrBadHeader = errors.New("hash file header is invalid")

type indexHeader struct {
	Magic       uint64
	Version     uint64
	BucketCount uint64
}

func (me *indexHeader) WriteTo(writer io.Writer) (n int64, _ error) {
	dn, err := util.WriteUint64s(writer, me.Magic, me.Version, me.BucketCount)
	return int64(dn), err
}

func (me *indexHeader) ReadFrom(reader io.Reader) (n int64, _ error) {
	dn, err := util.ReadUint64s(reader, &me.Magic, &me.Version, &me.BucketCount)
	return int64(dn), err
}

func (me *indexHeader) SizeOf() uint64 {
	return 3 * 8
}

func (me *indexHeader) Validate() error {
	if me.Magic != indexMagic || me.Version != version || me.BucketCount == 0 {
		return errors.Wrapf(ErrBadHeader, "index magic %x version %d buckets %d",
			me.Magic, me.Version, me.BucketCount)
	}
	return nil
}

type dataHeader struct {
	Magic   uint64
	Version uint64
}

func (me *dataHeader) WriteTo(writer io.Writer) (n int64, _ error) {
	dn, err := util.WriteUint64s(writer, me.Magic, me.Version)
	return int64(dn), err
}

func (me *dataHeader) ReadFrom(reader io.Reader) (n int64, _ error) {
	dn, err := util.ReadUint64s(reader, &me.Magic, &me.Version)
	return int64(dn), err
}

func (me *dataHeader) SizeOf() uint64 {
	return 2 * 8
}

func (me *dataHeader) Validate() error {
	if me.Magic != dataMagic || me.Version != version {
		return errors.Wrapf(ErrBadHeader, "data magic %x version %d", me.Magic, me.Version)
	}
	return nil
}
