// Package recordindex maps keys to the Location of their most recent record.
//
// Two implementations share the RecordIndex contract. Dense keeps a key map and a flat,
// fixed-stride array of locations in memory, and is persisted by the store. External
// delegates to a string-keyed Backend with its own durability.
package recordindex

import (
	"github.com/navijation/njkv/storage/location"
	"github.com/pkg/errors"
)

var (
	ErrTypeMismatch   = errors.New("key type is not supported by the index")
	ErrNoIndexFound   = errors.New("no index file found")
	ErrUnknownBackend = errors.New("unknown index backend")
	ErrCorruptIndex   = errors.New("index is corrupt")
)

type RecordIndex[K comparable] interface {
	// Get returns the location registered for |key|. A missing key is not an error.
	Get(key K) (out location.Location, exists bool, _ error)
	// Set registers |loc| as the location of |key|, replacing any previous location.
	Set(key K, loc location.Location) error
	// Commit makes registered locations durable, where the implementation owns durability.
	Commit() error
	Close() error
}

var (
	_ RecordIndex[string] = (*Dense[string])(nil)
	_ RecordIndex[string] = (*External[string])(nil)
)
