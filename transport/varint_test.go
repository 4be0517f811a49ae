package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, maxVarInt}
	for _, v := range values {
		b := make([]byte, 8)
		n := putVarint(b, v)
		assert.Equal(t, varintLen(v), n)

		var got uint64
		n2 := getVarint(b[:n], &got)
		assert.Equal(t, n, n2)
		assert.Equal(t, v, got)
	}
}

func TestVarintLenBoundaries(t *testing.T) {
	assert.Equal(t, 1, varintLen(63))
	assert.Equal(t, 2, varintLen(64))
	assert.Equal(t, 2, varintLen(16383))
	assert.Equal(t, 4, varintLen(16384))
	assert.Equal(t, 4, varintLen(1073741823))
	assert.Equal(t, 8, varintLen(1073741824))
	assert.Equal(t, 8, varintLen(maxVarInt))
}

func TestVarintLenPanicsOutOfRange(t *testing.T) {
	assert.Panics(t, func() {
		varintLen(maxVarInt + 1)
	})
}

func TestGetVarintTruncated(t *testing.T) {
	var v uint64
	assert.Equal(t, 0, getVarint(nil, &v))

	// First byte claims a 4-byte encoding but only 2 bytes are present.
	b := []byte{0x80, 0x01}
	assert.Equal(t, 0, getVarint(b, &v))
}

func TestGetVarintAcceptsNonMinimalEncoding(t *testing.T) {
	// 2-byte encoding of the value 1, which putVarint would encode in 1 byte.
	b := []byte{0x40, 0x01}
	var v uint64
	n := getVarint(b, &v)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 1, v)
}

func TestPutVarintFixedLen(t *testing.T) {
	b := make([]byte, 4)
	n := putVarintFixedLen(b, 5, 4)
	assert.Equal(t, 4, n)

	var v uint64
	n2 := getVarint(b, &v)
	assert.Equal(t, 4, n2)
	assert.EqualValues(t, 5, v)
}

func TestPutVarintFixedLenPanicsOnInvalidLength(t *testing.T) {
	assert.Panics(t, func() {
		putVarintFixedLen(make([]byte, 3), 1, 3)
	})
}

func TestVarintPrefixLen(t *testing.T) {
	assert.Equal(t, 1, varintPrefixLen(0x00))
	assert.Equal(t, 2, varintPrefixLen(0x40))
	assert.Equal(t, 4, varintPrefixLen(0x80))
	assert.Equal(t, 8, varintPrefixLen(0xc0))
}
