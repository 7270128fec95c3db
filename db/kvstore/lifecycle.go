package kvstore

import (
	"bufio"
	"io"
	"path/filepath"

	"github.com/navijation/njkv/metrics"
	"github.com/navijation/njkv/storage/recordindex"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// Save makes the store durable and closes every shard handle. A Dense store writes its
// location array and metadata, key map included. An External store commits its backend
// and writes metadata only. The store remains usable after Save; shards are reopened on
// demand.
func (me *Store[K, V]) Save() (err error) {
	defer func() {
		if err != nil {
			metrics.IndexSavesTotal.WithLabelValues(metrics.Fail).Inc()
		} else {
			metrics.IndexSavesTotal.WithLabelValues(metrics.Ok).Inc()
		}
	}()

	if err := me.shards.FlushWrites(); err != nil {
		return err
	}
	if err := me.fs.MkdirAll(me.path, 0o755); err != nil {
		return errors.WithMessage(err, "creating store directory")
	}

	if me.dense != nil {
		err = writeFileAtomic(me.fs, filepath.Join(me.path, IndexFileName), func(writer io.Writer) error {
			_, err := me.dense.WriteTo(writer)
			return err
		})
		if err != nil {
			return errors.WithMessage(err, "saving dense index")
		}
	} else if err := me.index.Commit(); err != nil {
		return errors.WithMessage(err, "committing index backend")
	}

	if err := writeParams(me.fs, me.path, me.params()); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"path":                  me.path,
		"variant":               me.variant,
		"shardForWrite":         me.shards.ShardForWrite(),
		"writtenInCurrentShard": me.shards.WrittenInCurrentShard(),
	}).Debug("saved store")

	return me.shards.CloseAll()
}

// Commit flushes shard writes and commits the index without closing anything.
func (me *Store[K, V]) Commit() error {
	if err := me.shards.FlushWrites(); err != nil {
		return err
	}
	return me.index.Commit()
}

// Close flushes and releases every shard handle and the index. It does not write store
// metadata; call Save first for the store to be loadable.
func (me *Store[K, V]) Close() (err error) {
	err = multierr.Append(err, me.shards.FlushWrites())
	err = multierr.Append(err, me.shards.CloseAll())
	err = multierr.Append(err, me.index.Close())
	return err
}

func readDenseIndex[K comparable](fs afero.Fs, dir string, keyMap map[K]uint64) (*recordindex.Dense[K], error) {
	path := filepath.Join(dir, IndexFileName)
	file, err := fs.Open(path)
	if err != nil {
		return nil, errors.WithMessage(err, "opening dense index")
	}
	defer file.Close()

	out, err := recordindex.RestoreDense(keyMap, bufio.NewReader(file))
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %s", path)
	}
	return out, nil
}
