package kvstore

import (
	"github.com/navijation/njkv/metrics"
	"github.com/navijation/njkv/storage/location"
	"github.com/pkg/errors"
)

// Set stores |value| under |key|. When the key already has a record whose length equals
// the new encoding, the record is overwritten in place; otherwise the encoding is appended
// to the current write shard and the index is pointed at it.
func (me *Store[K, V]) Set(key K, value V) error {
	content, err := me.codec.Marshal(value)
	if err != nil {
		return errors.WithMessage(err, "encoding value")
	}
	if len(content) == 0 {
		return errors.Errorf("codec %s produced an empty encoding", me.codec.Name())
	}

	existing, exists, err := me.index.Get(key)
	if err != nil {
		return err
	}

	if exists && existing.IsValid() && existing.Length == uint64(len(content)) {
		return me.overwrite(existing, content)
	}
	return me.append(key, content)
}

func (me *Store[K, V]) overwrite(loc location.Location, content []byte) error {
	reader, err := me.shards.Reader(loc.Shard)
	if err != nil {
		return err
	}
	if err := reader.Overwrite(loc.Offset, content); err != nil {
		return errors.WithMessagef(err, "overwriting %s", loc)
	}

	metrics.SetTotal.WithLabelValues(metrics.Overwrite).Inc()
	metrics.OverwrittenBytesTotal.Add(float64(len(content)))
	return nil
}

func (me *Store[K, V]) append(key K, content []byte) error {
	shardID := me.shards.ShardForWrite()
	writer, err := me.shards.Writer(shardID)
	if err != nil {
		return err
	}

	offset, n, err := writer.Append(content)
	if n > 0 {
		// bytes that reached the shard count towards rotation even if the record is not indexed
		defer me.shards.RotateIfNeeded(uint64(n))
		metrics.AppendedBytesTotal.Add(float64(n))
	}
	if err != nil {
		return errors.WithMessagef(err, "appending to shard %d", shardID)
	}

	loc := location.Location{
		Shard:  shardID,
		Offset: offset,
		Length: uint64(n),
	}
	if err := me.index.Set(key, loc); err != nil {
		return errors.WithMessagef(err, "indexing %s", loc)
	}

	metrics.SetTotal.WithLabelValues(metrics.Append).Inc()
	return nil
}
