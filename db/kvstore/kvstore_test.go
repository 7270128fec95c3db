package kvstore

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/navijation/njkv/codec"
	"github.com/navijation/njkv/metrics"
	"github.com/navijation/njkv/storage/location"
	"github.com/navijation/njkv/storage/recordindex"
	"github.com/navijation/njkv/util"
	testing_util "github.com/navijation/njkv/util/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Count uint64
}

// payload returns a byte slice whose CBOR encoding is exactly |encoded| bytes long, for
// 26 <= encoded < 257.
func payload(encoded int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, encoded-2)
}

var variants = []struct {
	name    string
	backend util.Optional[recordindex.BackendKind]
}{
	{name: "dense"},
	{name: "sqlite", backend: util.Some(recordindex.BackendSQLite)},
	{name: "hashfile", backend: util.Some(recordindex.BackendHashFile)},
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, variant := range variants {
		t.Run(variant.name, func(t *testing.T) {
			t.Parallel()

			dir, cleanup := testing_util.StoreDir(t, "TestStore_RoundTrip")
			defer cleanup()

			store, err := Open[string, record](OpenArgs{
				Path:    dir,
				Create:  true,
				Backend: variant.backend,
			})
			require.NoError(t, err)
			defer store.Close()

			expected := map[string]record{
				"alpha": {Name: "a", Count: 1},
				"beta":  {Name: "bb", Count: 200},
				"gamma": {Name: "ccc", Count: 1 << 40},
			}
			for key, value := range expected {
				require.NoError(t, store.Set(key, value))
			}
			for key, value := range expected {
				actual, err := store.Get(key)
				require.NoError(t, err)
				assert.Equal(t, value, actual)
			}

			_, err = store.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	t.Parallel()

	for _, variant := range variants {
		t.Run(variant.name, func(t *testing.T) {
			t.Parallel()

			dir, cleanup := testing_util.StoreDir(t, "TestStore_Overwrite")
			defer cleanup()

			store, err := Open[string, []byte](OpenArgs{
				Path:    dir,
				Create:  true,
				Backend: variant.backend,
			})
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Set("k", payload(40, 'a')))
			original, exists, err := store.Location("k")
			require.NoError(t, err)
			require.True(t, exists)
			assert.Equal(t, location.Location{Shard: 0, Offset: 0, Length: 40}, original)

			// same length: rewritten in place
			require.NoError(t, store.Set("k", payload(40, 'b')))
			loc, _, err := store.Location("k")
			require.NoError(t, err)
			assert.Equal(t, original, loc)

			value, err := store.Get("k")
			require.NoError(t, err)
			assert.Equal(t, payload(40, 'b'), value)

			// different length: appended, old bytes left behind
			require.NoError(t, store.Set("k", payload(50, 'c')))
			loc, _, err = store.Location("k")
			require.NoError(t, err)
			assert.Equal(t, location.Location{Shard: 0, Offset: 40, Length: 50}, loc)

			value, err = store.Get("k")
			require.NoError(t, err)
			assert.Equal(t, payload(50, 'c'), value)

			require.NoError(t, store.Commit())
			content, err := os.ReadFile(filepath.Join(dir, "store_shard_0000"))
			require.NoError(t, err)
			require.Len(t, content, 90)
			assert.Equal(t, payload(40, 'b'), content[2:40])
		})
	}
}

func TestStore_Rotation(t *testing.T) {
	t.Parallel()

	dir, cleanup := testing_util.StoreDir(t, "TestStore_Rotation")
	defer cleanup()

	store, err := Open[string, []byte](OpenArgs{
		Path:      dir,
		Create:    true,
		ShardSize: util.Some[uint64](100),
	})
	require.NoError(t, err)
	defer store.Close()

	for _, step := range []struct {
		key     string
		size    int
		loc     location.Location
		shard   uint64
		written uint64
	}{
		{key: "a", size: 80, loc: location.Location{Shard: 0, Offset: 0, Length: 80}, shard: 0, written: 80},
		{key: "b", size: 30, loc: location.Location{Shard: 0, Offset: 80, Length: 30}, shard: 1, written: 0},
		{key: "c", size: 26, loc: location.Location{Shard: 1, Offset: 0, Length: 26}, shard: 1, written: 26},
	} {
		require.NoError(t, store.Set(step.key, payload(step.size, 'x')))

		loc, exists, err := store.Location(step.key)
		require.NoError(t, err)
		require.True(t, exists)
		assert.Equal(t, step.loc, loc, step.key)

		state := store.Shards()
		assert.Equal(t, step.shard, state.ShardForWrite, step.key)
		assert.Equal(t, step.written, state.WrittenInCurrentShard, step.key)
	}

	for _, key := range []string{"a", "b", "c"} {
		_, err := store.Get(key)
		require.NoError(t, err, key)
	}

	require.NoError(t, store.Commit())
	info, err := os.Stat(filepath.Join(dir, "store_shard_0000"))
	require.NoError(t, err)
	assert.Equal(t, int64(110), info.Size())
	info, err = os.Stat(filepath.Join(dir, "store_shard_0001"))
	require.NoError(t, err)
	assert.Equal(t, int64(26), info.Size())
}

func TestStore_GetWithID(t *testing.T) {
	t.Parallel()

	dir, cleanup := testing_util.StoreDir(t, "TestStore_GetWithID")
	defer cleanup()

	store, err := Open[string, string](OpenArgs{Path: dir, Create: true})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set("first", "one"))
	require.NoError(t, store.Set("second", "two"))

	value, err := store.GetWithID(1)
	require.NoError(t, err)
	assert.Equal(t, "two", value)

	_, err = store.GetWithID(2)
	assert.ErrorIs(t, err, ErrNotFound)

	length, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), length)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, slices.Collect(keys))
}

func TestStore_DenseOnlyOperations(t *testing.T) {
	t.Parallel()

	dir, cleanup := testing_util.StoreDir(t, "TestStore_DenseOnlyOperations")
	defer cleanup()

	store, err := Open[string, string](OpenArgs{
		Path:    dir,
		Create:  true,
		Backend: util.Some(recordindex.BackendSQLite),
	})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetWithID(0)
	assert.ErrorIs(t, err, ErrNotDense)
	_, err = store.Len()
	assert.ErrorIs(t, err, ErrNotDense)
	_, err = store.Keys()
	assert.ErrorIs(t, err, ErrNotDense)
}

func TestStore_Persistence(t *testing.T) {
	t.Parallel()

	for _, variant := range variants {
		t.Run(variant.name, func(t *testing.T) {
			t.Parallel()

			dir, cleanup := testing_util.StoreDir(t, "TestStore_Persistence")
			defer cleanup()

			store, err := Open[string, []byte](OpenArgs{
				Path:      dir,
				Create:    true,
				Backend:   variant.backend,
				ShardSize: util.Some[uint64](100),
			})
			require.NoError(t, err)

			require.NoError(t, store.Set("a", payload(80, 'a')))
			require.NoError(t, store.Set("b", payload(30, 'b')))
			require.NoError(t, store.Set("c", payload(40, 'c')))
			require.NoError(t, store.Set("a", payload(80, 'A')))
			require.NoError(t, store.Set("b", payload(35, 'B')))

			before := store.Shards()
			id := store.ID()
			require.NoError(t, store.Save())
			require.NoError(t, store.Close())

			assert.FileExists(t, filepath.Join(dir, ParamsFileName))
			if variant.backend.IsSome() {
				assert.NoFileExists(t, filepath.Join(dir, IndexFileName))
			} else {
				assert.FileExists(t, filepath.Join(dir, IndexFileName))
			}

			loaded, err := Load[string, []byte](dir)
			require.NoError(t, err)
			defer loaded.Close()

			assert.Equal(t, id, loaded.ID())
			assert.Equal(t, store.Variant(), loaded.Variant())
			assert.Equal(t, store.Backend(), loaded.Backend())
			assert.Equal(t, "cbor", loaded.Codec().Name())

			after := loaded.Shards()
			assert.Equal(t, before.ShardForWrite, after.ShardForWrite)
			assert.Equal(t, before.WrittenInCurrentShard, after.WrittenInCurrentShard)
			assert.Equal(t, before.ShardSize, after.ShardSize)

			for key, expected := range map[string][]byte{
				"a": payload(80, 'A'),
				"b": payload(35, 'B'),
				"c": payload(40, 'c'),
			} {
				value, err := loaded.Get(key)
				require.NoError(t, err, key)
				assert.Equal(t, expected, value, key)
			}

			// appends continue where the saved store left off
			require.NoError(t, loaded.Set("d", payload(30, 'd')))
			loc, _, err := loaded.Location("d")
			require.NoError(t, err)
			assert.Equal(t, before.ShardForWrite, loc.Shard)
		})
	}
}

func TestStore_SaveIsRepeatable(t *testing.T) {
	t.Parallel()

	dir, cleanup := testing_util.StoreDir(t, "TestStore_SaveIsRepeatable")
	defer cleanup()

	store, err := Open[int, string](OpenArgs{Path: dir, Create: true})
	require.NoError(t, err)

	require.NoError(t, store.Set(1, "one"))
	require.NoError(t, store.Save())
	require.NoError(t, store.Set(2, "two"))
	require.NoError(t, store.Save())
	require.NoError(t, store.Close())

	loaded, err := Load[int, string](dir)
	require.NoError(t, err)
	defer loaded.Close()

	for key, expected := range map[int]string{1: "one", 2: "two"} {
		value, err := loaded.Get(key)
		require.NoError(t, err)
		assert.Equal(t, expected, value)
	}
	assert.NoFileExists(t, filepath.Join(dir, IndexFileName+".next"))
}

func TestStore_OpenErrors(t *testing.T) {
	t.Parallel()

	t.Run("no params", func(t *testing.T) {
		dir, cleanup := testing_util.MkdirTemp(t, "TestStore_OpenErrors")
		defer cleanup()

		_, err := Load[string, string](dir)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("store exists", func(t *testing.T) {
		dir, cleanup := testing_util.StoreDir(t, "TestStore_OpenErrors")
		defer cleanup()

		store, err := Open[string, string](OpenArgs{Path: dir, Create: true})
		require.NoError(t, err)
		require.NoError(t, store.Save())
		require.NoError(t, store.Close())

		_, err = Open[string, string](OpenArgs{Path: dir, Create: true})
		assert.ErrorIs(t, err, ErrStoreExists)
	})

	t.Run("external backend with non-string keys", func(t *testing.T) {
		dir, cleanup := testing_util.StoreDir(t, "TestStore_OpenErrors")
		defer cleanup()

		_, err := Open[int, string](OpenArgs{
			Path:    dir,
			Create:  true,
			Backend: util.Some(recordindex.BackendHashFile),
		})
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.NoDirExists(t, dir)
	})

	t.Run("backend marker missing", func(t *testing.T) {
		dir, cleanup := testing_util.StoreDir(t, "TestStore_OpenErrors")
		defer cleanup()

		store, err := Open[string, string](OpenArgs{
			Path:    dir,
			Create:  true,
			Backend: util.Some(recordindex.BackendSQLite),
		})
		require.NoError(t, err)
		require.NoError(t, store.Set("k", "v"))
		require.NoError(t, store.Save())
		require.NoError(t, store.Close())

		require.NoError(t, os.Remove(filepath.Join(dir, "store_index.s3db")))

		_, err = Load[string, string](dir)
		assert.ErrorIs(t, err, ErrNoIndexFound)
	})

	t.Run("explicit backend differs from saved", func(t *testing.T) {
		dir, cleanup := testing_util.StoreDir(t, "TestStore_OpenErrors")
		defer cleanup()

		store, err := Open[string, string](OpenArgs{
			Path:    dir,
			Create:  true,
			Backend: util.Some(recordindex.BackendSQLite),
		})
		require.NoError(t, err)
		require.NoError(t, store.Set("k", "v"))
		require.NoError(t, store.Save())
		require.NoError(t, store.Close())

		_, err = Open[string, string](OpenArgs{Path: dir, Backend: util.Some(recordindex.BackendHashFile)})
		assert.ErrorIs(t, err, ErrBackendMismatch)
		assert.NoFileExists(t, filepath.Join(dir, "store_index.hashfile.db"))
		assert.NoFileExists(t, filepath.Join(dir, "store_index.hashfile.dat"))

		loaded, err := Load[string, string](dir)
		require.NoError(t, err)
		defer loaded.Close()
		assert.Equal(t, recordindex.BackendSQLite, loaded.Backend())

		value, err := loaded.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)
	})

	t.Run("saved backend wins over a stray marker", func(t *testing.T) {
		dir, cleanup := testing_util.StoreDir(t, "TestStore_OpenErrors")
		defer cleanup()

		store, err := Open[string, string](OpenArgs{
			Path:    dir,
			Create:  true,
			Backend: util.Some(recordindex.BackendSQLite),
		})
		require.NoError(t, err)
		require.NoError(t, store.Set("k", "v"))
		require.NoError(t, store.Save())
		require.NoError(t, store.Close())

		// an empty hashfile pair probes ahead of sqlite
		stray, err := recordindex.OpenBackend(recordindex.BackendHashFile, recordindex.BackendArgs{
			Dir:    dir,
			Create: true,
		})
		require.NoError(t, err)
		require.NoError(t, stray.Close())

		loaded, err := Load[string, string](dir)
		require.NoError(t, err)
		defer loaded.Close()
		assert.Equal(t, recordindex.BackendSQLite, loaded.Backend())

		value, err := loaded.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)
	})

	t.Run("dense store with explicit backend", func(t *testing.T) {
		dir, cleanup := testing_util.StoreDir(t, "TestStore_OpenErrors")
		defer cleanup()

		store, err := Open[string, string](OpenArgs{Path: dir, Create: true})
		require.NoError(t, err)
		require.NoError(t, store.Save())
		require.NoError(t, store.Close())

		_, err = Open[string, string](OpenArgs{Path: dir, Backend: util.Some(recordindex.BackendSQLite)})
		assert.ErrorIs(t, err, ErrBackendMismatch)
		assert.NoFileExists(t, filepath.Join(dir, "store_index.s3db"))
	})

	t.Run("codec mismatch", func(t *testing.T) {
		dir, cleanup := testing_util.StoreDir(t, "TestStore_OpenErrors")
		defer cleanup()

		store, err := Open[string, string](OpenArgs{Path: dir, Create: true, Codec: codec.JSON{}})
		require.NoError(t, err)
		require.NoError(t, store.Set("k", "v"))
		require.NoError(t, store.Save())
		require.NoError(t, store.Close())

		_, err = Open[string, string](OpenArgs{Path: dir, Codec: codec.CBOR{}})
		assert.ErrorIs(t, err, ErrCodecMismatch)

		loaded, err := Load[string, string](dir)
		require.NoError(t, err)
		defer loaded.Close()
		assert.Equal(t, "json", loaded.Codec().Name())

		value, err := loaded.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", value)
	})

	t.Run("truncated dense index", func(t *testing.T) {
		dir, cleanup := testing_util.StoreDir(t, "TestStore_OpenErrors")
		defer cleanup()

		store, err := Open[string, string](OpenArgs{Path: dir, Create: true})
		require.NoError(t, err)
		require.NoError(t, store.Set("k", "v"))
		require.NoError(t, store.Save())
		require.NoError(t, store.Close())

		require.NoError(t, os.Truncate(filepath.Join(dir, IndexFileName), 20))

		_, err = Load[string, string](dir)
		assert.ErrorIs(t, err, ErrCorruptIndex)
	})
}

// Not parallel: metrics are process-wide.
func TestStore_Metrics(t *testing.T) {
	dir, cleanup := testing_util.StoreDir(t, "TestStore_Metrics")
	defer cleanup()

	store, err := Open[string, []byte](OpenArgs{Path: dir, Create: true})
	require.NoError(t, err)
	defer store.Close()

	appends := testutil.ToFloat64(metrics.SetTotal.WithLabelValues(metrics.Append))
	overwrites := testutil.ToFloat64(metrics.SetTotal.WithLabelValues(metrics.Overwrite))
	appendedBytes := testutil.ToFloat64(metrics.AppendedBytesTotal)
	notFound := testutil.ToFloat64(metrics.GetTotal.WithLabelValues(metrics.NotFound))
	saves := testutil.ToFloat64(metrics.IndexSavesTotal.WithLabelValues(metrics.Ok))

	require.NoError(t, store.Set("k", payload(30, 'a')))
	require.NoError(t, store.Set("k", payload(30, 'b')))
	_, err = store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Save())

	assert.Equal(t, appends+1, testutil.ToFloat64(metrics.SetTotal.WithLabelValues(metrics.Append)))
	assert.Equal(t, overwrites+1, testutil.ToFloat64(metrics.SetTotal.WithLabelValues(metrics.Overwrite)))
	assert.Equal(t, appendedBytes+30, testutil.ToFloat64(metrics.AppendedBytesTotal))
	assert.Equal(t, notFound+1, testutil.ToFloat64(metrics.GetTotal.WithLabelValues(metrics.NotFound)))
	assert.Equal(t, saves+1, testutil.ToFloat64(metrics.IndexSavesTotal.WithLabelValues(metrics.Ok)))
}
