package leb128

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUint32(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 300, 1 << 31, 0xffffffff} {
		enc := EncodeUint32(v)
		got, n, err := DecodeUint32(bytes.NewReader(enc))
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, uint64(len(enc)), n)
	}
}

func TestDecodeInt32RoundTrip(t *testing.T) {
	for _, v := range []int32{0, -1, 1, 127, -128, 1 << 20, -(1 << 20)} {
		enc := EncodeInt32(v)
		got, _, err := DecodeInt32(bytes.NewReader(enc))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestDecodeUint32TooLong(t *testing.T) {
	// Ten continuation bytes is more than ceil(32/7)=5 groups could ever need.
	buf := bytes.Repeat([]byte{0x80}, 10)
	buf = append(buf, 0x00)
	_, _, err := DecodeUint32(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrIntegerRepresentationTooLong)
}

func TestDecodeUint32TooLarge(t *testing.T) {
	// 5 groups worth of bits, encoding a value that needs bit 32.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x10}
	_, _, err := DecodeUint32(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrIntegerTooLarge)
}

func TestDecodeInt32SignExtension(t *testing.T) {
	// -1 encoded minimally: 0x7f
	got, n, err := DecodeInt32(bytes.NewReader([]byte{0x7f}))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got)
	assert.Equal(t, uint64(1), n)
}

func TestDecodeInt33AsInt64(t *testing.T) {
	// Largest positive s33 value: 2^32 - 1
	buf := EncodeInt64(1<<32 - 1)
	got, _, err := DecodeInt33AsInt64(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<32-1), got)
}
