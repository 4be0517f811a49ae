package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameAckElicitingExceptions(t *testing.T) {
	assert.False(t, isFrameAckEliciting(frameTypeAck))
	assert.False(t, isFrameAckEliciting(frameTypeAckECN))
	assert.False(t, isFrameAckEliciting(frameTypePadding))
	assert.True(t, isFrameAckEliciting(frameTypeCrypto))
	assert.True(t, isFrameAckEliciting(frameTypePing))
	assert.True(t, isFrameAckEliciting(frameTypeStream))
}

func TestFrameProbingTypes(t *testing.T) {
	for _, typ := range []uint64{frameTypePathChallenge, frameTypePathResponse, frameTypeNewConnectionID, frameTypePadding} {
		assert.True(t, isFrameProbing(typ), "type %x", typ)
	}
	for _, typ := range []uint64{frameTypePing, frameTypeCrypto, frameTypeStream, frameTypeAck} {
		assert.False(t, isFrameProbing(typ), "type %x", typ)
	}
}

func TestFrameAllowedInitialAndHandshake(t *testing.T) {
	for _, pktType := range []packetType{packetTypeInitial, packetTypeHandshake} {
		for _, typ := range []uint64{frameTypePadding, frameTypePing, frameTypeAck, frameTypeAckECN, frameTypeCrypto, frameTypeConnectionClose} {
			assert.True(t, isFrameAllowed(typ, pktType), "type %x in %v", typ, pktType)
		}
		for _, typ := range []uint64{frameTypeStream, frameTypeNewToken, frameTypeApplicationClose, frameTypeMaxData, frameTypeHanshakeDone} {
			assert.False(t, isFrameAllowed(typ, pktType), "type %x in %v", typ, pktType)
		}
	}
}

func TestFrameAllowedZeroRTT(t *testing.T) {
	for _, typ := range []uint64{frameTypeAck, frameTypeAckECN, frameTypeCrypto, frameTypeNewToken, frameTypePathResponse, frameTypeHanshakeDone} {
		assert.False(t, isFrameAllowed(typ, packetTypeZeroRTT), "type %x should be disallowed in 0-RTT", typ)
	}
	// Application-level CONNECTION_CLOSE and ordinary stream/flow-control
	// frames are permitted in 0-RTT (RFC 9000 section 12.4 Table 3).
	for _, typ := range []uint64{frameTypeStream, frameTypeApplicationClose, frameTypeMaxData, frameTypePathChallenge, frameTypePadding, frameTypePing} {
		assert.True(t, isFrameAllowed(typ, packetTypeZeroRTT), "type %x should be allowed in 0-RTT", typ)
	}
}

func TestFrameAllowedShortAllowsEverything(t *testing.T) {
	for _, typ := range []uint64{frameTypePadding, frameTypeCrypto, frameTypeStream, frameTypeNewToken, frameTypeHanshakeDone, frameTypeApplicationClose} {
		assert.True(t, isFrameAllowed(typ, packetTypeShort), "type %x", typ)
	}
}

func TestPingFrameEncode(t *testing.T) {
	f := &pingFrame{}
	b := make([]byte, f.encodedLen())
	n, err := f.encode(b)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(frameTypePing), b[0])
}

func TestCryptoFrameRoundTrip(t *testing.T) {
	data := []byte("client hello bytes")
	f := newCryptoFrame(data, 42)
	b := make([]byte, f.encodedLen())
	n, err := f.encode(b)
	require.NoError(t, err)
	assert.Equal(t, f.encodedLen(), n)

	got := &cryptoFrame{}
	dn, err := got.decode(b[:n])
	require.NoError(t, err)
	assert.Equal(t, n, dn)
	assert.Equal(t, data, got.data)
	assert.EqualValues(t, 42, got.offset)
}

func TestNewTokenFrameRoundTrip(t *testing.T) {
	token := []byte{0xde, 0xad, 0xbe, 0xef}
	f := newNewTokenFrame(token)
	b := make([]byte, f.encodedLen())
	n, err := f.encode(b)
	require.NoError(t, err)

	got := &newTokenFrame{}
	_, err = got.decode(b[:n])
	require.NoError(t, err)
	assert.Equal(t, token, got.token)
}

func TestMaxDataFrameRoundTrip(t *testing.T) {
	f := newMaxDataFrame(12345)
	b := make([]byte, f.encodedLen())
	n, err := f.encode(b)
	require.NoError(t, err)

	got := &maxDataFrame{}
	_, err = got.decode(b[:n])
	require.NoError(t, err)
	assert.EqualValues(t, 12345, got.maximumData)
}

func TestPaddingFrameEncodeFillsLength(t *testing.T) {
	f := newPaddingFrame(5)
	b := make([]byte, 5)
	n, err := f.encode(b)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	for _, c := range b {
		assert.Equal(t, byte(frameTypePadding), c)
	}
}

func TestConnectionCloseFrameApplicationVsTransport(t *testing.T) {
	transportClose := newConnectionCloseFrame(1, 0x06, []byte("bad crypto"), false)
	b := make([]byte, transportClose.encodedLen())
	n, err := transportClose.encode(b)
	require.NoError(t, err)
	var typ uint64
	tn := getVarint(b, &typ)
	assert.Equal(t, frameTypeConnectionClose, typ)

	appClose := newConnectionCloseFrame(7, 0, []byte("bye"), true)
	b2 := make([]byte, appClose.encodedLen())
	n2, err := appClose.encode(b2)
	require.NoError(t, err)
	var typ2 uint64
	tn2 := getVarint(b2, &typ2)
	assert.Equal(t, frameTypeApplicationClose, typ2)
	assert.Greater(t, n, 0)
	assert.Greater(t, n2, 0)
	_ = tn2
}
