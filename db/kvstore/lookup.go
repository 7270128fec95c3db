package kvstore

import (
	"bytes"
	"iter"

	"github.com/navijation/njkv/metrics"
	"github.com/navijation/njkv/storage/location"
	"github.com/pkg/errors"
)

func (me *Store[K, V]) Get(key K) (out V, _ error) {
	loc, exists, err := me.index.Get(key)
	if err != nil {
		metrics.GetTotal.WithLabelValues(metrics.Fail).Inc()
		return out, err
	}
	if !exists || !loc.IsValid() {
		metrics.GetTotal.WithLabelValues(metrics.NotFound).Inc()
		return out, errors.Wrapf(ErrNotFound, "key %v", key)
	}
	return me.read(loc)
}

// GetWithID reads the value of the record with dense id |id|.
func (me *Store[K, V]) GetWithID(id uint64) (out V, _ error) {
	if me.dense == nil {
		return out, ErrNotDense
	}
	loc, exists := me.dense.GetID(id)
	if !exists || !loc.IsValid() {
		metrics.GetTotal.WithLabelValues(metrics.NotFound).Inc()
		return out, errors.Wrapf(ErrNotFound, "id %d", id)
	}
	return me.read(loc)
}

// Location returns where the value of |key| is stored.
func (me *Store[K, V]) Location(key K) (location.Location, bool, error) {
	loc, exists, err := me.index.Get(key)
	if err != nil || !exists || !loc.IsValid() {
		return location.Location{}, false, err
	}
	return loc, true, nil
}

func (me *Store[K, V]) read(loc location.Location) (out V, err error) {
	defer func() {
		if err != nil {
			metrics.GetTotal.WithLabelValues(metrics.Fail).Inc()
		} else {
			metrics.GetTotal.WithLabelValues(metrics.Ok).Inc()
		}
	}()

	reader, err := me.shards.Reader(loc.Shard)
	if err != nil {
		return out, err
	}
	view, err := reader.View(loc.Offset, loc.Length)
	if err != nil {
		return out, errors.WithMessagef(err, "reading %s", loc)
	}
	// the view aliases the mapping, which is unmapped when the shard switches mode
	if err := me.codec.Unmarshal(bytes.Clone(view), &out); err != nil {
		return out, errors.WithMessagef(err, "decoding %s", loc)
	}
	return out, nil
}

// Len is the number of distinct keys of a Dense store.
func (me *Store[K, V]) Len() (uint64, error) {
	if me.dense == nil {
		return 0, ErrNotDense
	}
	return uint64(len(me.dense.KeyMap())), nil
}

// Keys iterates the keys of a Dense store in insertion order.
func (me *Store[K, V]) Keys() (iter.Seq[K], error) {
	if me.dense == nil {
		return nil, ErrNotDense
	}
	return me.dense.Keys(), nil
}
