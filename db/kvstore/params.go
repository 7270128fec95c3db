package kvstore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/navijation/njkv/codec"
	"github.com/navijation/njkv/storage/recordindex"
	"github.com/navijation/njkv/storage/shard"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	ParamsFileName = "store_params"
	IndexFileName  = "store_index"

	formatVersion uint64 = 1
)

type Variant string

const (
	// VariantDense keeps a key map and a flat location array, both saved by the store.
	VariantDense Variant = "dense"
	// VariantExternal keeps locations in an external backend with its own durability.
	VariantExternal Variant = "external"
)

// storeParams is the metadata saved alongside a store. It is always encoded with CBOR,
// independent of the value codec, so that it can be read before the codec is known.
type storeParams[K comparable] struct {
	FormatVersion uint64
	StoreID       [16]byte
	Variant       Variant
	Backend       recordindex.BackendKind
	Codec         string
	Path          string
	Shards        shard.State
	// dense variant only
	KeyMap map[K]uint64
}

func readParams[K comparable](fs afero.Fs, dir string) (out storeParams[K], _ error) {
	content, err := afero.ReadFile(fs, filepath.Join(dir, ParamsFileName))
	if err != nil {
		return out, errors.WithMessage(err, "reading store params")
	}
	if err := (codec.CBOR{}).Unmarshal(content, &out); err != nil {
		return out, errors.WithMessage(err, "decoding store params")
	}
	if out.FormatVersion != formatVersion {
		return out, errors.Wrapf(ErrUnsupportedFormat, "version %d", out.FormatVersion)
	}
	return out, nil
}

func writeParams[K comparable](fs afero.Fs, dir string, params storeParams[K]) error {
	content, err := (codec.CBOR{}).Marshal(params)
	if err != nil {
		return errors.WithMessage(err, "encoding store params")
	}
	return writeFileAtomic(fs, filepath.Join(dir, ParamsFileName), func(writer io.Writer) error {
		_, err := writer.Write(content)
		return err
	})
}

// writeFileAtomic writes the complete file content to a temporary file, and then moves
// it to |path|, so a reader never observes a partially written file.
func writeFileAtomic(fs afero.Fs, path string, write func(io.Writer) error) (err error) {
	nextPath := path + ".next"

	file, err := fs.OpenFile(nextPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.WithMessagef(err, "creating %s", nextPath)
	}

	if err = write(file); err != nil {
		_ = file.Close()
		return errors.WithMessagef(err, "writing %s", nextPath)
	} else if err = file.Sync(); err != nil {
		_ = file.Close()
		return errors.WithMessagef(err, "syncing %s", nextPath)
	} else if err = file.Close(); err != nil {
		return errors.WithMessagef(err, "closing %s", nextPath)
	} else if err = fs.Rename(nextPath, path); err != nil {
		return errors.WithMessagef(err, "renaming %s => %s", nextPath, path)
	}
	return nil
}
