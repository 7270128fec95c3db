// Package codec turns stored values into bytes and back.
//
// The length of a record is tracked by the store's index, not by the codec, and a set whose
// encoding has the same length as the stored one is written in place. Codecs must therefore
// be deterministic: equal values always encode to identical bytes. The codec name is saved
// with a store, and changing it makes previously written records unreadable.
package codec

import "github.com/pkg/errors"

// Codec encodes/decodes values.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

var ErrUnknownCodec = errors.New("unknown codec")

// Default is the codec of newly created stores.
var Default Codec = CBOR{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, error) {
	switch name {
	case CBOR{}.Name():
		return CBOR{}, nil
	case JSON{}.Name():
		return JSON{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownCodec, "%q", name)
}
