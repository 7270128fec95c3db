// Package hashfile stores a string-keyed location index in a pair of files: a fixed table
// of bucket heads, and an append-only file of chained entries. Keys hash to buckets with
// xxhash; distinct keys that share a bucket are told apart by comparing the stored key.
//
// Appended entries become reachable from a reopened File only once the bucket table is
// written by Commit. Location updates of existing entries are written in place immediately.
package hashfile

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/navijation/njkv/storage/location"
	"github.com/navijation/njkv/util"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	IndexFileName = "store_index.hashfile.db"
	DataFileName  = "store_index.hashfile.dat"

	DefaultBuckets   uint64 = 1 << 16
	DefaultCacheSize        = 4096
)

type File struct {
	dir string

	indexFile *os.File
	dataFile  *os.File

	indexHeader indexHeader
	// data-file offset of the first entry of each bucket, or 0 if the bucket is empty
	buckets []uint64
	// userspace tracking of the data file size, which is also the next append offset
	dataSize uint64
	// whether buckets changed since the last Commit
	dirty bool

	// key => data-file offset of its entry. Entries never move, so cached offsets stay valid.
	entryOffsets *lru.Cache
}

type OpenArgs struct {
	Dir       string
	Buckets   util.Optional[uint64]
	CacheSize util.Optional[int]
	// MustExist fails with os.ErrNotExist instead of creating a missing file pair.
	MustExist bool
}

// Open opens the hash file pair in |args.Dir|, creating it if the bucket table file does
// not exist and MustExist is unset. Buckets only applies to newly created files.
func Open(args OpenArgs) (_ *File, err error) {
	indexPath := filepath.Join(args.Dir, IndexFileName)
	dataPath := filepath.Join(args.Dir, DataFileName)

	create, err := util.FileExists(indexPath)
	if err != nil {
		return nil, err
	}
	create = !create
	if create && args.MustExist {
		return nil, errors.Wrapf(os.ErrNotExist, "opening %s", indexPath)
	}

	cache, err := lru.New(args.CacheSize.Or(DefaultCacheSize))
	if err != nil {
		return nil, errors.WithMessage(err, "creating entry cache")
	}

	out := &File{dir: args.Dir, entryOffsets: cache}
	defer func() {
		if err != nil {
			_ = out.closeFiles()
		}
	}()

	// the data file is opened (and created) first, so that the bucket table file which marks
	// the index as present only exists once its data file does
	dataFlags := os.O_RDWR | os.O_CREATE
	if args.MustExist {
		dataFlags = os.O_RDWR
	}
	if out.dataFile, err = os.OpenFile(dataPath, dataFlags, 0o644); err != nil {
		return nil, errors.WithMessage(err, "opening hash data file")
	}
	if create {
		err = out.initialize(args.Buckets.Or(DefaultBuckets), indexPath)
	} else {
		err = out.load(indexPath)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (me *File) initialize(bucketCount uint64, indexPath string) (err error) {
	if bucketCount == 0 {
		bucketCount = DefaultBuckets
	}

	if err := me.dataFile.Truncate(0); err != nil {
		return err
	}
	header := dataHeader{Magic: dataMagic, Version: version}
	if _, err := header.WriteTo(util.Ptr(util.NewFileWrapperAt(me.dataFile, 0))); err != nil {
		return errors.WithMessage(err, "writing hash data header")
	}
	if err := me.dataFile.Sync(); err != nil {
		return err
	}
	me.dataSize = header.SizeOf()

	if me.indexFile, err = os.OpenFile(indexPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644); err != nil {
		return errors.WithMessage(err, "creating hash index file")
	}
	me.indexHeader = indexHeader{Magic: indexMagic, Version: version, BucketCount: bucketCount}
	me.buckets = make([]uint64, bucketCount)
	me.dirty = true

	return me.Commit()
}

func (me *File) load(indexPath string) (err error) {
	if me.indexFile, err = os.OpenFile(indexPath, os.O_RDWR, 0); err != nil {
		return errors.WithMessage(err, "opening hash index file")
	}

	var header dataHeader
	if _, err := header.ReadFrom(util.Ptr(util.NewFileWrapperAt(me.dataFile, 0))); err != nil {
		return errors.WithMessage(err, "reading hash data header")
	} else if err := header.Validate(); err != nil {
		return err
	}

	dataInfo, err := me.dataFile.Stat()
	if err != nil {
		return err
	}
	me.dataSize = uint64(dataInfo.Size())

	reader := bufio.NewReader(util.Ptr(util.NewFileWrapperAt(me.indexFile, 0)))
	if _, err := me.indexHeader.ReadFrom(reader); err != nil {
		return errors.WithMessage(err, "reading hash index header")
	} else if err := me.indexHeader.Validate(); err != nil {
		return err
	}

	me.buckets = make([]uint64, me.indexHeader.BucketCount)
	for i := range me.buckets {
		head, _, err := util.ReadUint64(reader)
		if err != nil {
			return errors.WithMessagef(err, "reading bucket %d", i)
		}
		if head >= me.dataSize {
			return errors.Wrapf(ErrBadHeader, "bucket %d points past end of data file", i)
		} else if head != 0 && head < header.SizeOf() {
			return errors.Wrapf(ErrBadHeader, "bucket %d points into the data file header", i)
		}
		me.buckets[i] = head
	}
	return nil
}

func (me *File) BucketCount() uint64 {
	return uint64(len(me.buckets))
}

func (me *File) Get(key string) (out location.Location, exists bool, _ error) {
	found, _, exists, err := me.find(key)
	if err != nil || !exists {
		return out, false, err
	}
	return found.Location, true, nil
}

func (me *File) Set(key string, loc location.Location) error {
	_, offset, exists, err := me.find(key)
	if err != nil {
		return err
	}

	if exists {
		writer := util.NewFileWrapperAt(me.dataFile, offset+locationFieldOffset)
		if _, err := loc.WriteTo(&writer); err != nil {
			return errors.WithMessagef(err, "updating entry of %q", key)
		}
		return nil
	}

	bucket := me.bucketOf(key)
	newEntry := entry{
		Next:     me.buckets[bucket],
		Location: loc,
		Key:      []byte(key),
	}
	encoded, err := util.ToBytes(&newEntry)
	util.AssertNoError(err)

	offset = me.dataSize
	n, err := me.dataFile.WriteAt(encoded, int64(offset))
	if err != nil {
		// a torn entry past dataSize is unreachable and overwritten by the next append
		return errors.WithMessagef(err, "appending entry of %q", key)
	}
	me.dataSize += uint64(n)
	me.buckets[bucket] = offset
	me.dirty = true
	me.entryOffsets.Add(key, offset)
	return nil
}

// Commit syncs appended entries, then writes and syncs the bucket table which makes them
// reachable.
func (me *File) Commit() error {
	if err := me.dataFile.Sync(); err != nil {
		return errors.WithMessage(err, "syncing hash data file")
	}
	if !me.dirty {
		return nil
	}

	writer := bufio.NewWriter(util.Ptr(util.NewFileWrapperAt(me.indexFile, 0)))
	if _, err := me.indexHeader.WriteTo(writer); err != nil {
		return err
	}
	if _, err := util.WriteUint64s(writer, me.buckets...); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return errors.WithMessage(err, "writing bucket table")
	}
	if err := me.indexFile.Sync(); err != nil {
		return errors.WithMessage(err, "syncing hash index file")
	}
	me.dirty = false
	return nil
}

func (me *File) Close() error {
	return multierr.Append(me.Commit(), me.closeFiles())
}

func (me *File) closeFiles() (err error) {
	for _, file := range []*os.File{me.indexFile, me.dataFile} {
		if file != nil {
			err = multierr.Append(err, file.Close())
		}
	}
	me.indexFile, me.dataFile = nil, nil
	return err
}

func (me *File) bucketOf(key string) uint64 {
	return xxhash.Sum64String(key) % uint64(len(me.buckets))
}

// find returns the entry of |key| and its data-file offset.
func (me *File) find(key string) (out entry, offset uint64, exists bool, _ error) {
	if cached, ok := me.entryOffsets.Get(key); ok {
		offset = cached.(uint64)
		found, err := me.readEntry(offset)
		return found, offset, err == nil, err
	}

	for offset = me.buckets[me.bucketOf(key)]; offset != 0; offset = out.Next {
		var err error
		if out, err = me.readEntry(offset); err != nil {
			return out, 0, false, err
		}
		if bytes.Equal(out.Key, []byte(key)) {
			me.entryOffsets.Add(key, offset)
			return out, offset, true, nil
		}
	}
	return entry{}, 0, false, nil
}

func (me *File) readEntry(offset uint64) (out entry, _ error) {
	reader := bufio.NewReaderSize(util.Ptr(util.NewFileWrapperAt(me.dataFile, offset)), 128)
	if _, err := out.ReadFrom(reader); err != nil {
		return out, errors.WithMessagef(err, "reading hash entry at %d", offset)
	}
	return out, nil
}
