package shard

import (
	"path/filepath"
	"slices"

	"github.com/navijation/njkv/metrics"
	"github.com/navijation/njkv/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const DefaultShardSize uint64 = 1 << 30

// Manager owns the shard files of a store: which file backs each shard id, which handles
// are open and in which Mode, and which shard currently receives appends.
//
// At most one handle is open per shard. Switching a shard between modes closes the old
// handle before the new one is opened. Manager is not safe for concurrent use.
type Manager struct {
	// immutable config
	path      string
	shardSize uint64

	// state tracking
	fileIndex             map[uint64]string
	shardForWrite         uint64
	writtenInCurrentShard uint64

	opened map[uint64]Handle
	// shard ids in the order their current handles were acquired
	openOrder []uint64
}

type ManagerArgs struct {
	Path      string
	ShardSize util.Optional[uint64]
}

// State is the persisted portion of a Manager.
type State struct {
	FileIndex             map[uint64]string
	ShardForWrite         uint64
	WrittenInCurrentShard uint64
	ShardSize             uint64
}

func NewManager(args ManagerArgs) *Manager {
	shardSize := args.ShardSize.Or(DefaultShardSize)
	if shardSize == 0 {
		shardSize = DefaultShardSize
	}
	return &Manager{
		path:      args.Path,
		shardSize: shardSize,
		fileIndex: make(map[uint64]string),
		opened:    make(map[uint64]Handle),
	}
}

// RestoreManager rebuilds a Manager from a saved State. No shard file is opened or checked.
func RestoreManager(path string, state State) *Manager {
	out := NewManager(ManagerArgs{Path: path, ShardSize: util.Some(state.ShardSize)})
	for id, name := range state.FileIndex {
		out.fileIndex[id] = name
	}
	out.shardForWrite = state.ShardForWrite
	out.writtenInCurrentShard = state.WrittenInCurrentShard
	return out
}

func (me *Manager) State() State {
	fileIndex := make(map[uint64]string, len(me.fileIndex))
	for id, name := range me.fileIndex {
		fileIndex[id] = name
	}
	return State{
		FileIndex:             fileIndex,
		ShardForWrite:         me.shardForWrite,
		WrittenInCurrentShard: me.writtenInCurrentShard,
		ShardSize:             me.shardSize,
	}
}

func (me *Manager) Path() string                  { return me.path }
func (me *Manager) ShardSize() uint64             { return me.shardSize }
func (me *Manager) ShardForWrite() uint64         { return me.shardForWrite }
func (me *Manager) WrittenInCurrentShard() uint64 { return me.writtenInCurrentShard }

// OpenMode returns the mode of the handle open for shard |id|, if any.
func (me *Manager) OpenMode(id uint64) (Mode, bool) {
	handle, ok := me.opened[id]
	if !ok {
		return 0, false
	}
	return handle.Mode(), true
}

// OpenForWrite opens shard |id| for appending, creating the shard file and the store
// directory as needed. The handle is not registered with the Manager.
func (me *Manager) OpenForWrite(id uint64) (*WriteHandle, error) {
	if err := util.EnsureDir(me.path); err != nil {
		return nil, errors.WithMessage(err, "creating store directory")
	}
	handle, err := openWriteHandle(id, me.shardPath(id))
	if err != nil {
		return nil, errors.WithMessagef(err, "opening shard %d for write", id)
	}
	me.recordFileName(id)
	return handle, nil
}

// OpenForRead maps the current contents of shard |id|. The shard file must exist. The
// handle is not registered with the Manager.
func (me *Manager) OpenForRead(id uint64) (*ReadHandle, error) {
	handle, err := openReadHandle(id, me.shardPath(id))
	if err != nil {
		return nil, errors.WithMessagef(err, "opening shard %d for read", id)
	}
	me.recordFileName(id)
	return handle, nil
}

// EnsureMode returns the handle for shard |id| in |mode|, reusing an open handle already in
// that mode, and otherwise closing whatever handle is open before opening a new one.
func (me *Manager) EnsureMode(id uint64, mode Mode) (Handle, error) {
	if handle, ok := me.opened[id]; ok {
		if handle.Mode() == mode {
			return handle, nil
		}
		me.forget(id)
		if err := handle.Close(); err != nil {
			return nil, errors.WithMessagef(err, "closing shard %d %s handle", id, handle.Mode())
		}
		log.WithFields(log.Fields{
			"path":  me.path,
			"shard": id,
			"from":  handle.Mode().String(),
			"to":    mode.String(),
		}).Debug("switching shard mode")
	}

	var (
		handle Handle
		err    error
	)
	switch mode {
	case ModeWrite:
		handle, err = me.OpenForWrite(id)
	case ModeRead:
		handle, err = me.OpenForRead(id)
	default:
		return nil, errors.Errorf("unsupported shard mode %d", mode)
	}
	if err != nil {
		return nil, err
	}

	me.opened[id] = handle
	me.openOrder = append(me.openOrder, id)
	metrics.ShardOpensTotal.WithLabelValues(mode.String()).Inc()
	return handle, nil
}

func (me *Manager) Writer(id uint64) (*WriteHandle, error) {
	handle, err := me.EnsureMode(id, ModeWrite)
	if err != nil {
		return nil, err
	}
	return handle.(*WriteHandle), nil
}

func (me *Manager) Reader(id uint64) (*ReadHandle, error) {
	handle, err := me.EnsureMode(id, ModeRead)
	if err != nil {
		return nil, err
	}
	return handle.(*ReadHandle), nil
}

// RotateIfNeeded accounts |written| bytes to the current write shard and advances to the
// next shard once the threshold is reached. It is only called after a write completes, so
// a record is never split across shards.
func (me *Manager) RotateIfNeeded(written uint64) (rotated bool) {
	me.writtenInCurrentShard += written
	if me.writtenInCurrentShard < me.shardSize {
		return false
	}

	log.WithFields(log.Fields{
		"path":    me.path,
		"shard":   me.shardForWrite,
		"written": me.writtenInCurrentShard,
	}).Debug("rotating write shard")

	me.shardForWrite++
	me.writtenInCurrentShard = 0
	metrics.ShardRotationsTotal.Inc()
	return true
}

// FlushWrites syncs every open handle without closing it: appended bytes of write handles,
// and overwritten bytes of mapped read handles.
func (me *Manager) FlushWrites() (err error) {
	for _, id := range me.openOrder {
		if flushErr := me.opened[id].Flush(); flushErr != nil {
			err = multierr.Append(err, errors.WithMessagef(flushErr, "flushing shard %d", id))
		}
	}
	return err
}

// CloseAll closes every open handle, most recently acquired first.
func (me *Manager) CloseAll() (err error) {
	for _, id := range slices.Backward(me.openOrder) {
		if closeErr := me.opened[id].Close(); closeErr != nil {
			err = multierr.Append(err, errors.WithMessagef(closeErr, "closing shard %d", id))
		}
	}
	clear(me.opened)
	me.openOrder = me.openOrder[:0]
	return err
}

func (me *Manager) shardPath(id uint64) string {
	name, ok := me.fileIndex[id]
	if !ok {
		name = FileName(id)
	}
	return filepath.Join(me.path, name)
}

// recordFileName adds shard |id| to the file index once its file has been opened.
func (me *Manager) recordFileName(id uint64) {
	if _, ok := me.fileIndex[id]; !ok {
		me.fileIndex[id] = FileName(id)
	}
}

func (me *Manager) forget(id uint64) {
	delete(me.opened, id)
	me.openOrder = slices.DeleteFunc(me.openOrder, func(openID uint64) bool {
		return openID == id
	})
}
