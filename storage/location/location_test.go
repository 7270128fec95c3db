package location

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_serde(t *testing.T) {
	loc := Location{Shard: 2, Offset: 1 << 40, Length: 77}

	var buf bytes.Buffer
	n, err := loc.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, loc.SizeOf(), uint64(n))
	assert.Equal(t, []byte{
		0, 0, 0, 0, 0, 0, 0, 2,
		0, 0, 1, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 77,
	}, buf.Bytes())

	var deser Location
	n, err = deser.ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(24), n)
	assert.Equal(t, loc, deser)
}

func TestLocation_ReadFromShortInput(t *testing.T) {
	var deser Location
	_, err := deser.ReadFrom(bytes.NewReader(make([]byte, 20)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestLocation_Validity(t *testing.T) {
	assert.False(t, Location{Shard: 1, Offset: 10}.IsValid())
	assert.True(t, Location{Length: 1}.IsValid())
	assert.Equal(t, uint64(15), Location{Offset: 10, Length: 5}.End())
}
