package recordindex

import (
	"path/filepath"

	"github.com/navijation/njkv/storage/indexbackend/hashfile"
	"github.com/navijation/njkv/storage/indexbackend/sqlitedb"
	"github.com/navijation/njkv/util"
	"github.com/pkg/errors"
)

type BackendKind string

const (
	// BackendSQLite is an ordered index in an embedded SQLite database.
	BackendSQLite BackendKind = "sqlite"
	// BackendHashFile is a hashed index in a bucket table and entry file pair.
	BackendHashFile BackendKind = "hashfile"
)

var (
	_ Backend = (*sqlitedb.DB)(nil)
	_ Backend = (*hashfile.File)(nil)
)

// probeOrder is the order in which InferBackend looks for marker files.
var probeOrder = []BackendKind{BackendHashFile, BackendSQLite}

func ParseBackendKind(name string) (BackendKind, error) {
	switch kind := BackendKind(name); kind {
	case BackendSQLite, BackendHashFile:
		return kind, nil
	}
	return "", errors.Wrapf(ErrUnknownBackend, "%q", name)
}

// MarkerFile is the file whose presence in a store directory identifies |kind|.
func MarkerFile(kind BackendKind) (string, error) {
	switch kind {
	case BackendSQLite:
		return sqlitedb.FileName, nil
	case BackendHashFile:
		return hashfile.IndexFileName, nil
	}
	return "", errors.Wrapf(ErrUnknownBackend, "%q", kind)
}

// InferBackend probes |dir| for backend marker files in a fixed order. It fails with
// ErrNoIndexFound rather than guessing when no marker is present.
func InferBackend(dir string) (BackendKind, error) {
	for _, kind := range probeOrder {
		marker, _ := MarkerFile(kind)
		if exists, err := util.FileExists(filepath.Join(dir, marker)); err != nil {
			return "", err
		} else if exists {
			return kind, nil
		}
	}
	return "", errors.Wrapf(ErrNoIndexFound, "in %q", dir)
}

type BackendArgs struct {
	Dir string
	// Create a new backend. Otherwise the backend's marker file must already exist.
	Create            bool
	HashFileBuckets   util.Optional[uint64]
	HashFileCacheSize util.Optional[int]
}

// OpenBackend opens the |kind| backend stored in |args.Dir|. Without args.Create, a backend
// whose marker file is missing fails with ErrNoIndexFound rather than being created empty.
func OpenBackend(kind BackendKind, args BackendArgs) (Backend, error) {
	marker, err := MarkerFile(kind)
	if err != nil {
		return nil, err
	}

	if args.Create {
		if err := util.EnsureDir(args.Dir); err != nil {
			return nil, errors.WithMessage(err, "creating store directory")
		}
	} else if exists, err := util.FileExists(filepath.Join(args.Dir, marker)); err != nil {
		return nil, err
	} else if !exists {
		return nil, errors.Wrapf(ErrNoIndexFound, "%s index %s in %q", kind, marker, args.Dir)
	}

	switch kind {
	case BackendSQLite:
		return sqlitedb.Open(sqlitedb.OpenArgs{Dir: args.Dir, MustExist: !args.Create})
	default:
		return hashfile.Open(hashfile.OpenArgs{
			Dir:       args.Dir,
			Buckets:   args.HashFileBuckets,
			CacheSize: args.HashFileCacheSize,
			MustExist: !args.Create,
		})
	}
}
