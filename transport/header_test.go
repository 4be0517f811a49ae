package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestLongHeader(t *testing.T, typ packetType, dcid, scid, token []byte) []byte {
	t.Helper()
	p := &packet{typ: typ}
	p.header.version = Version
	p.header.dcid = dcid
	p.header.scid = scid
	p.token = token
	p.packetNumber = 1
	p.packetNumberLen = 1
	p.payloadLen = 20
	b := make([]byte, p.encodedLen()+int(p.payloadLen))
	n, err := p.encode(b)
	require.NoError(t, err)
	return b[:n]
}

func TestIsLongHeader(t *testing.T) {
	assert.True(t, IsLongHeader([]byte{0x80, 0, 0, 0, 1}))
	assert.False(t, IsLongHeader([]byte{0x40, 1, 2, 3}))
	assert.False(t, IsLongHeader(nil))
}

func TestDecodeConnectionIDLongHeader(t *testing.T) {
	dcid := []byte{1, 2, 3, 4}
	scid := []byte{5, 6}
	b := encodeTestLongHeader(t, packetTypeInitial, dcid, scid, nil)

	got, err := DecodeConnectionID(b, 16)
	require.NoError(t, err)
	assert.Equal(t, dcid, got)
}

func TestDecodeConnectionIDShortHeader(t *testing.T) {
	dcid := make([]byte, 16)
	for i := range dcid {
		dcid[i] = byte(i)
	}
	b := append([]byte{headerFixedBit}, dcid...)
	b = append(b, 0x01) // truncated packet number

	got, err := DecodeConnectionID(b, 16)
	require.NoError(t, err)
	assert.Equal(t, dcid, got)
}

func TestDecodeConnectionIDTooShort(t *testing.T) {
	_, err := DecodeConnectionID(nil, 16)
	assert.Error(t, err)

	_, err = DecodeConnectionID([]byte{headerFixedBit, 1, 2}, 16)
	assert.Error(t, err)
}

func TestDecodeLongHeaderVersion(t *testing.T) {
	dcid := []byte{9, 9, 9}
	scid := []byte{8, 8}
	b := encodeTestLongHeader(t, packetTypeInitial, dcid, scid, nil)

	version, gotDcid, gotScid, err := DecodeLongHeaderVersion(b)
	require.NoError(t, err)
	assert.Equal(t, Version, version)
	assert.Equal(t, dcid, gotDcid)
	assert.Equal(t, scid, gotScid)
}

func TestEncodeVersionNegotiationSwapsConnectionIDs(t *testing.T) {
	clientDcid := []byte{1, 1, 1}
	clientScid := []byte{2, 2}

	vn, err := EncodeVersionNegotiation(clientScid, clientDcid, []uint32{Version, GreaseVersion})
	require.NoError(t, err)

	assert.True(t, IsLongHeader(vn))

	version, gotDcid, gotScid, err := DecodeLongHeaderVersion(vn)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), version)
	assert.Equal(t, clientScid, gotDcid)
	assert.Equal(t, clientDcid, gotScid)

	var p packet
	_, err = p.decodeLongHeader(vn)
	require.NoError(t, err)
	_, err = p.decodeBody(vn)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{Version, GreaseVersion}, p.supportedVersions)
}

func TestEncodeVersionNegotiationRejectsOversizedCID(t *testing.T) {
	tooLong := make([]byte, MaxCIDLength+1)
	_, err := EncodeVersionNegotiation(tooLong, []byte{1}, []uint32{Version})
	assert.Error(t, err)
}

func TestPacketNumberLenForRange(t *testing.T) {
	assert.Equal(t, 1, packetNumberLenForRange(1, 0))
	assert.Equal(t, 4, packetNumberLenForRange(1<<30, 0))
}

func TestRecoverPacketNumberSameLength(t *testing.T) {
	// No wraparound: truncated value close to largest decodes to itself.
	got := recoverPacketNumber(1000, 1001&0xff, 1)
	assert.EqualValues(t, 1001, got)
}

func TestRecoverPacketNumberWrapsForward(t *testing.T) {
	// largest=0x1fe with a 1-byte truncated value of 0x01 should recover
	// to the next window up (0x201), not the smaller candidate (0x101).
	got := recoverPacketNumber(0x1fe, 0x01, 1)
	assert.EqualValues(t, 0x201, got)
}
