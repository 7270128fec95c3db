package kvstore

import (
	"github.com/navijation/njkv/storage/recordindex"
	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("key not found")
	ErrStoreExists       = errors.New("store already exists")
	ErrNotDense          = errors.New("operation requires a dense index")
	ErrUnsupportedFormat = errors.New("unsupported store format")
	ErrCodecMismatch     = errors.New("codec does not match the store")
	ErrBackendMismatch   = errors.New("index backend does not match the store")

	ErrTypeMismatch = recordindex.ErrTypeMismatch
	ErrNoIndexFound = recordindex.ErrNoIndexFound
	ErrCorruptIndex = recordindex.ErrCorruptIndex
)
