package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Count int
	Tags  map[string]int
}

func TestByName(t *testing.T) {
	for _, name := range []string{"cbor", "json"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())
		})
	}

	_, err := ByName("pickle")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestCodecs_DeterministicLength(t *testing.T) {
	value := record{
		Name:  "abc",
		Count: 12,
		Tags:  map[string]int{"z": 1, "a": 2, "m": 3, "q": 4},
	}

	for _, c := range []Codec{CBOR{}, JSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			first, err := c.Marshal(value)
			require.NoError(t, err)

			for range 20 {
				again, err := c.Marshal(value)
				require.NoError(t, err)
				assert.Equal(t, first, again)
			}

			var decoded record
			require.NoError(t, c.Unmarshal(first, &decoded))
			assert.Equal(t, value, decoded)
		})
	}
}

func TestCBOR_SameShapeSameLength(t *testing.T) {
	a, err := CBOR{}.Marshal([]byte("aaaa"))
	require.NoError(t, err)
	b, err := CBOR{}.Marshal([]byte("bbbb"))
	require.NoError(t, err)
	c, err := CBOR{}.Marshal([]byte("ccccc"))
	require.NoError(t, err)

	assert.Len(t, b, len(a))
	assert.NotEqual(t, len(a), len(c))
}
