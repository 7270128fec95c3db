// Package kvstore is a disk-backed key-value store. Encoded values are appended to shard
// files, and an index maps every key to the shard, offset and length of its latest value.
// A set whose encoding has the same length as the stored value overwrites it in place.
//
// A Store is single-threaded: it must not be used from multiple goroutines at once, and a
// store directory must not be opened by more than one Store.
package kvstore

import (
	"path/filepath"

	"github.com/google/uuid"
	"github.com/navijation/njkv/codec"
	"github.com/navijation/njkv/storage/recordindex"
	"github.com/navijation/njkv/storage/shard"
	"github.com/navijation/njkv/util"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type Store[K comparable, V any] struct {
	// immutable config
	path    string
	id      [16]byte
	fs      afero.Fs
	codec   codec.Codec
	variant Variant
	backend recordindex.BackendKind

	shards *shard.Manager
	index  recordindex.RecordIndex[K]
	// the Dense variant's index, which is also |index|; nil for the External variant
	dense *recordindex.Dense[K]
}

type OpenArgs struct {
	Path string
	// Create a new store, rather than loading one saved at Path.
	Create bool
	// ShardSize is the shard rotation threshold in bytes. Only used on Create.
	ShardSize util.Optional[uint64]
	// Backend selects the External variant and its backend on Create; None creates a Dense
	// store. When loading, it must match the saved backend; a store saved without one
	// infers it from marker files when None.
	Backend util.Optional[recordindex.BackendKind]
	// Codec encodes values. Defaults to codec.Default on Create, and to the codec saved with
	// the store on load.
	Codec codec.Codec
	// Fs holds the params and dense index files. Defaults to the OS filesystem.
	Fs afero.Fs
	// ExpectedRecords pre-sizes a new dense index.
	ExpectedRecords util.Optional[uint64]

	HashFileBuckets   util.Optional[uint64]
	HashFileCacheSize util.Optional[int]
}

func Open[K comparable, V any](args OpenArgs) (*Store[K, V], error) {
	if args.Fs == nil {
		args.Fs = afero.NewOsFs()
	}
	if args.Create {
		return create[K, V](args)
	}
	return load[K, V](args)
}

// Load reopens the store saved at |path| with default options.
func Load[K comparable, V any](path string) (*Store[K, V], error) {
	return Open[K, V](OpenArgs{Path: path})
}

func create[K comparable, V any](args OpenArgs) (*Store[K, V], error) {
	if exists, err := afero.Exists(args.Fs, filepath.Join(args.Path, ParamsFileName)); err != nil {
		return nil, err
	} else if exists {
		return nil, errors.Wrapf(ErrStoreExists, "at %q", args.Path)
	}

	out := &Store[K, V]{
		path:  args.Path,
		id:    util.NewRandomUUIDBytes(),
		fs:    args.Fs,
		codec: args.Codec,
		shards: shard.NewManager(shard.ManagerArgs{
			Path:      args.Path,
			ShardSize: args.ShardSize,
		}),
	}
	if out.codec == nil {
		out.codec = codec.Default
	}

	if kind, ok := args.Backend.Unpack(); ok {
		if err := out.openExternal(kind, args); err != nil {
			return nil, err
		}
	} else {
		out.variant = VariantDense
		out.dense = recordindex.NewDense[K](args.ExpectedRecords.Or(0))
		out.index = out.dense
	}

	log.WithFields(log.Fields{
		"path":      out.path,
		"id":        out.ID().String(),
		"variant":   out.variant,
		"backend":   out.backend,
		"shardSize": out.shards.ShardSize(),
	}).Debug("created store")
	return out, nil
}

func load[K comparable, V any](args OpenArgs) (_ *Store[K, V], err error) {
	params, err := readParams[K](args.Fs, args.Path)
	if err != nil {
		return nil, err
	}

	if params.Path != args.Path {
		log.WithFields(log.Fields{
			"path":      args.Path,
			"savedPath": params.Path,
		}).Warn("store was saved under a different path")
	}

	out := &Store[K, V]{
		path:   args.Path,
		id:     params.StoreID,
		fs:     args.Fs,
		shards: shard.RestoreManager(args.Path, params.Shards),
	}

	if args.Codec == nil {
		if out.codec, err = codec.ByName(params.Codec); err != nil {
			return nil, err
		}
	} else if args.Codec.Name() != params.Codec {
		return nil, errors.Wrapf(ErrCodecMismatch, "store uses %q, got %q", params.Codec, args.Codec.Name())
	} else {
		out.codec = args.Codec
	}

	switch params.Variant {
	case VariantDense:
		if kind, ok := args.Backend.Unpack(); ok {
			return nil, errors.Wrapf(ErrBackendMismatch, "dense store, got %q", kind)
		}
		out.variant = VariantDense
		if out.dense, err = readDenseIndex(args.Fs, args.Path, params.KeyMap); err != nil {
			return nil, err
		}
		out.index = out.dense

	case VariantExternal:
		kind, err := resolveBackend(params.Backend, args)
		if err != nil {
			return nil, err
		}
		if err := out.openExternal(kind, args); err != nil {
			return nil, err
		}

	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "variant %q", params.Variant)
	}
	return out, nil
}

// resolveBackend picks the backend of a saved External store: the saved kind, which an
// explicit args.Backend must agree with, or else the probed marker files.
func resolveBackend(saved recordindex.BackendKind, args OpenArgs) (recordindex.BackendKind, error) {
	explicit, ok := args.Backend.Unpack()
	switch {
	case saved != "" && ok && explicit != saved:
		return "", errors.Wrapf(ErrBackendMismatch, "store uses %q, got %q", saved, explicit)
	case saved != "":
		return saved, nil
	case ok:
		return explicit, nil
	}
	return recordindex.InferBackend(args.Path)
}

func (me *Store[K, V]) openExternal(kind recordindex.BackendKind, args OpenArgs) error {
	if err := recordindex.CheckKeyType[K](); err != nil {
		return err
	}
	backend, err := recordindex.OpenBackend(kind, recordindex.BackendArgs{
		Dir:               args.Path,
		Create:            args.Create,
		HashFileBuckets:   args.HashFileBuckets,
		HashFileCacheSize: args.HashFileCacheSize,
	})
	if err != nil {
		return err
	}
	me.variant = VariantExternal
	me.backend = kind
	me.index = recordindex.NewExternal[K](kind, backend)
	return nil
}

func (me *Store[K, V]) Path() string {
	return me.path
}

func (me *Store[K, V]) ID() uuid.UUID {
	return util.UUIDFromBytes(me.id)
}

func (me *Store[K, V]) Variant() Variant {
	return me.variant
}

// Backend is the external backend kind, or "" for a Dense store.
func (me *Store[K, V]) Backend() recordindex.BackendKind {
	return me.backend
}

func (me *Store[K, V]) Codec() codec.Codec {
	return me.codec
}

// Shards exposes the shard manager state, for inspection.
func (me *Store[K, V]) Shards() shard.State {
	return me.shards.State()
}

func (me *Store[K, V]) params() storeParams[K] {
	out := storeParams[K]{
		FormatVersion: formatVersion,
		StoreID:       me.id,
		Variant:       me.variant,
		Backend:       me.backend,
		Codec:         me.codec.Name(),
		Path:          me.path,
		Shards:        me.shards.State(),
	}
	if me.dense != nil {
		out.KeyMap = me.dense.KeyMap()
	}
	return out
}
