package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStatelessResetShapeAndToken(t *testing.T) {
	var token [statelessResetTokenLen]byte
	token[0] = 0xab
	token[15] = 0xcd

	reset := BuildStatelessReset(token, 40)
	require.NotNil(t, reset)
	assert.Less(t, len(reset), 40, "result must be shorter than the triggering datagram")
	assert.GreaterOrEqual(t, len(reset), minStatelessResetLen)
	assert.EqualValues(t, 0, reset[0]&headerFormLong, "long-header bit must be clear")
	assert.NotEqual(t, 0, reset[0]&headerFixedBit, "fixed bit must be set")
	assert.Equal(t, token[:], reset[len(reset)-statelessResetTokenLen:])
}

func TestBuildStatelessResetTooSmallTriggeringLen(t *testing.T) {
	var token [statelessResetTokenLen]byte
	assert.Nil(t, BuildStatelessReset(token, 10))
}

func TestIsStatelessResetMatchesKnownToken(t *testing.T) {
	var token [statelessResetTokenLen]byte
	token[0] = 0x11
	reset := BuildStatelessReset(token, 40)
	require.NotNil(t, reset)

	assert.True(t, IsStatelessReset(reset, [][statelessResetTokenLen]byte{token}))

	var other [statelessResetTokenLen]byte
	other[0] = 0x22
	assert.False(t, IsStatelessReset(reset, [][statelessResetTokenLen]byte{other}))
}

func TestIsStatelessResetRejectsTooShort(t *testing.T) {
	var token [statelessResetTokenLen]byte
	short := make([]byte, minStatelessResetLen-1)
	assert.False(t, IsStatelessReset(short, [][statelessResetTokenLen]byte{token}))
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, constantTimeEqual([]byte{1, 2, 3}, []byte{1, 2, 3}))
	assert.False(t, constantTimeEqual([]byte{1, 2, 3}, []byte{1, 2, 4}))
	assert.False(t, constantTimeEqual([]byte{1, 2}, []byte{1, 2, 3}))
}
