package recordindex

import (
	"bufio"
	"io"
	"iter"
	"slices"

	"github.com/navijation/njkv/storage/location"
	"github.com/pkg/errors"
)

// Locations are stored back to back; record id |i| occupies words [i*Stride, (i+1)*Stride).
const minGrowRecords = 1024

// Dense assigns each distinct key a sequential id (in insertion order) and addresses a
// flat array of locations by that id.
type Dense[K comparable] struct {
	keyMap    map[K]uint64
	locations []uint64
}

func NewDense[K comparable](expectedRecords uint64) *Dense[K] {
	out := &Dense[K]{
		keyMap: make(map[K]uint64, expectedRecords),
	}
	out.Reserve(expectedRecords)
	return out
}

// RestoreDense rebuilds a Dense index from a saved key map and the flat location array
// read from |reader|. Ids in |keyMap| are trusted as-is.
func RestoreDense[K comparable](keyMap map[K]uint64, reader io.Reader) (*Dense[K], error) {
	if keyMap == nil {
		keyMap = make(map[K]uint64)
	}
	out := &Dense[K]{keyMap: keyMap}
	if _, err := out.ReadFrom(reader); err != nil {
		return nil, err
	}
	return out, nil
}

// Reserve grows capacity to hold at least |records| locations.
func (me *Dense[K]) Reserve(records uint64) {
	if extra := int(records)*location.Stride - len(me.locations); extra > 0 {
		me.locations = slices.Grow(me.locations, extra)
	}
}

// Len is the number of location records, which is also the next id to be assigned.
func (me *Dense[K]) Len() uint64 {
	return uint64(len(me.locations) / location.Stride)
}

func (me *Dense[K]) ID(key K) (id uint64, exists bool) {
	id, exists = me.keyMap[key]
	return id, exists
}

// LookupOrInsert returns the id of |key|, assigning the next sequential id if |key| is new.
// A freshly assigned id has no location until Append or Set; until then GetID reports it
// as not found.
func (me *Dense[K]) LookupOrInsert(key K) uint64 {
	if id, exists := me.keyMap[key]; exists {
		return id
	}
	id := max(me.Len(), uint64(len(me.keyMap)))
	me.keyMap[key] = id
	return id
}

// GetID returns the location of record |id|. Ids beyond Len are not found.
func (me *Dense[K]) GetID(id uint64) (out location.Location, exists bool) {
	if id >= me.Len() {
		return out, false
	}
	words := me.locations[id*location.Stride : (id+1)*location.Stride]
	return location.Location{Shard: words[0], Offset: words[1], Length: words[2]}, true
}

// Append adds |loc| as the next record and returns its id.
func (me *Dense[K]) Append(loc location.Location) uint64 {
	id := me.Len()
	me.grow(1)
	me.locations = append(me.locations, loc.Shard, loc.Offset, loc.Length)
	return id
}

// SetID stores |loc| as record |id|. Records between Len and |id| are filled with
// zero-length, absent, locations.
func (me *Dense[K]) SetID(id uint64, loc location.Location) {
	for me.Len() < id {
		me.Append(location.Location{})
	}
	if id == me.Len() {
		me.Append(loc)
		return
	}
	copy(me.locations[id*location.Stride:], []uint64{loc.Shard, loc.Offset, loc.Length})
}

func (me *Dense[K]) Get(key K) (out location.Location, exists bool, _ error) {
	id, exists := me.keyMap[key]
	if !exists {
		return out, false, nil
	}
	out, exists = me.GetID(id)
	return out, exists, nil
}

func (me *Dense[K]) Set(key K, loc location.Location) error {
	me.SetID(me.LookupOrInsert(key), loc)
	return nil
}

// Commit is a no-op; a Dense index is made durable by writing it out with WriteTo.
func (me *Dense[K]) Commit() error { return nil }

func (me *Dense[K]) Close() error { return nil }

// KeyMap returns the key to id mapping. The map is shared with the index.
func (me *Dense[K]) KeyMap() map[K]uint64 {
	return me.keyMap
}

// Keys yields keys in id order.
func (me *Dense[K]) Keys() iter.Seq[K] {
	ordered := make([]K, 0, len(me.keyMap))
	for key := range me.keyMap {
		ordered = append(ordered, key)
	}
	slices.SortFunc(ordered, func(a, b K) int {
		ida, idb := me.keyMap[a], me.keyMap[b]
		switch {
		case ida < idb:
			return -1
		case ida > idb:
			return 1
		}
		return 0
	})
	return slices.Values(ordered)
}

// WriteTo writes the location array as a flat sequence of big-endian triplets, with no
// header or per-record framing.
func (me *Dense[K]) WriteTo(writer io.Writer) (n int64, _ error) {
	buffer := bufio.NewWriter(writer)
	for id := range me.Len() {
		loc, _ := me.GetID(id)
		dn, err := loc.WriteTo(buffer)
		n += dn
		if err != nil {
			return n, err
		}
	}
	return n, buffer.Flush()
}

// ReadFrom replaces the location array with triplets read from |reader| until EOF.
func (me *Dense[K]) ReadFrom(reader io.Reader) (n int64, _ error) {
	buffer := bufio.NewReader(reader)
	me.locations = me.locations[:0]
	for {
		var loc location.Location
		dn, err := loc.ReadFrom(buffer)
		n += dn
		if errors.Is(err, io.EOF) && dn == 0 {
			return n, nil
		} else if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return n, errors.Wrapf(ErrCorruptIndex, "trailing %d bytes after record %d",
				n%int64(loc.SizeOf()), me.Len())
		} else if err != nil {
			return n, err
		}
		me.Append(loc)
	}
}

// grow allocates ahead so that appends amortize to constant time.
func (me *Dense[K]) grow(records int) {
	needed := records * location.Stride
	if cap(me.locations)-len(me.locations) >= needed {
		return
	}
	ahead := max(len(me.locations), minGrowRecords*location.Stride, needed)
	me.locations = slices.Grow(me.locations, ahead)
}
