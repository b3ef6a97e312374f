package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	compressible := bytes.Repeat([]byte("xtree-page-"), 512)

	for _, typ := range []Type{None, LZ4, ZSTD} {
		t.Run(typ.String(), func(t *testing.T) {
			frame, err := Encode(compressible, typ)
			require.NoError(t, err)
			if typ != None {
				assert.Less(t, len(frame), len(compressible))
			}

			out, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, compressible, out)
		})
	}
}

func TestEncode_IncompressibleFallsBack(t *testing.T) {
	data := []byte{0x01, 0x7f, 0x33}

	frame, err := Encode(data, ZSTD)
	require.NoError(t, err)
	assert.Equal(t, byte(None), frame[0])

	out, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)

	frame, err := Encode(bytes.Repeat([]byte("a"), 64), None)
	require.NoError(t, err)
	_, err = Decode(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrCorrupt)

	frame[0] = 9
	_, err = Decode(frame)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("lz4")
	require.NoError(t, err)
	assert.Equal(t, LZ4, typ)

	_, err = ParseType("snappy")
	assert.Error(t, err)
}
