package recordindex

import (
	"reflect"

	"github.com/navijation/njkv/storage/location"
	"github.com/pkg/errors"
)

// Backend is a durable string-keyed map of locations.
type Backend interface {
	Get(key string) (out location.Location, exists bool, _ error)
	Set(key string, loc location.Location) error
	// Commit makes every Set durable.
	Commit() error
	Close() error
}

// External is a RecordIndex over a Backend. Keys must have an underlying string type;
// other keys fail with ErrTypeMismatch before the backend is touched.
type External[K comparable] struct {
	kind    BackendKind
	backend Backend
}

func NewExternal[K comparable](kind BackendKind, backend Backend) *External[K] {
	return &External[K]{kind: kind, backend: backend}
}

func (me *External[K]) Kind() BackendKind {
	return me.kind
}

func (me *External[K]) Backend() Backend {
	return me.backend
}

func (me *External[K]) Get(key K) (out location.Location, exists bool, _ error) {
	stringKey, err := toStringKey(key)
	if err != nil {
		return out, false, err
	}
	return me.backend.Get(stringKey)
}

func (me *External[K]) Set(key K, loc location.Location) error {
	stringKey, err := toStringKey(key)
	if err != nil {
		return err
	}
	return me.backend.Set(stringKey, loc)
}

func (me *External[K]) Commit() error {
	return me.backend.Commit()
}

func (me *External[K]) Close() error {
	return me.backend.Close()
}

// CheckKeyType fails with ErrTypeMismatch unless K has an underlying string type.
func CheckKeyType[K comparable]() error {
	var zero K
	_, err := toStringKey(zero)
	return err
}

func toStringKey[K comparable](key K) (string, error) {
	if stringKey, ok := any(key).(string); ok {
		return stringKey, nil
	}
	value := reflect.ValueOf(key)
	if value.Kind() != reflect.String {
		return "", errors.Wrapf(ErrTypeMismatch, "external index keys must be strings, got %T", key)
	}
	return value.String(), nil
}
