package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParametersMarshalUnmarshalRoundTrip(t *testing.T) {
	var p Parameters
	p.InitialSourceCID = []byte{1, 2, 3}
	p.InitialMaxData = 1000
	p.InitialMaxStreamDataBidiLocal = 100
	p.InitialMaxStreamsBidi = 10
	p.MaxIdleTimeout = 30 * time.Second
	p.DisableActiveMigration = true

	b := p.Marshal()

	var got Parameters
	err := got.Unmarshal(b, false)
	require.NoError(t, err)
	assert.Equal(t, p.InitialSourceCID, got.InitialSourceCID)
	assert.EqualValues(t, 1000, got.InitialMaxData)
	assert.EqualValues(t, 100, got.InitialMaxStreamDataBidiLocal)
	assert.EqualValues(t, 10, got.InitialMaxStreamsBidi)
	assert.Equal(t, 30*time.Second, got.MaxIdleTimeout)
	assert.True(t, got.DisableActiveMigration)
}

func TestParametersUnmarshalAppliesDefaults(t *testing.T) {
	var p Parameters
	err := p.Unmarshal(nil, false)
	require.NoError(t, err)
	assert.EqualValues(t, defaultAckDelayExponent, p.AckDelayExponent)
	assert.EqualValues(t, DefaultActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
}

func TestParametersUnmarshalRejectsDuplicateID(t *testing.T) {
	var b []byte
	b = appendVarintUintParam(b, paramInitialMaxData, 10)
	b = appendVarintUintParam(b, paramInitialMaxData, 20)

	var p Parameters
	err := p.Unmarshal(b, false)
	assert.Error(t, err)
}

func TestParametersUnmarshalRejectsServerOnlyFromClient(t *testing.T) {
	var b []byte
	b = appendVarintParam(b, paramOriginalDestinationConnectionID, []byte{1, 2, 3})

	var p Parameters
	err := p.Unmarshal(b, false) // fromServer=false: client sent a server-only param
	assert.Error(t, err)

	var p2 Parameters
	err = p2.Unmarshal(b, true)
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p2.OriginalDestinationCID)
}

func TestParametersUnmarshalRejectsOversizedAckDelayExponent(t *testing.T) {
	var b []byte
	b = appendVarintUintParam(b, paramAckDelayExponent, maxAckDelayExponentLimit+1)

	var p Parameters
	err := p.Unmarshal(b, false)
	assert.Error(t, err)
}

func TestParametersUnmarshalIgnoresUnknownParam(t *testing.T) {
	var b []byte
	b = appendVarintParam(b, 0x7e1f, []byte("grease"))
	b = appendVarintUintParam(b, paramInitialMaxData, 5)

	var p Parameters
	err := p.Unmarshal(b, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, p.InitialMaxData)
}

func TestPreferredAddressCodecRoundTrip(t *testing.T) {
	a := &PreferredAddress{
		IPv4:         [4]byte{10, 0, 0, 1},
		IPv4Port:     4433,
		ConnectionID: []byte{1, 2, 3, 4},
	}
	a.ResetToken[0] = 0xaa

	b := encodePreferredAddress(a)
	got, err := decodePreferredAddress(b)
	require.NoError(t, err)
	assert.Equal(t, a.IPv4, got.IPv4)
	assert.Equal(t, a.IPv4Port, got.IPv4Port)
	assert.Equal(t, a.ConnectionID, got.ConnectionID)
	assert.Equal(t, a.ResetToken, got.ResetToken)
}

func TestPreferredAddressEmpty(t *testing.T) {
	a := &PreferredAddress{}
	assert.True(t, a.empty())
	a.IPv6Port = 1
	assert.False(t, a.empty())
}

func TestParametersMarshalIncludesPreferredAddress(t *testing.T) {
	var p Parameters
	p.PreferredAddress = &PreferredAddress{IPv4Port: 443, ConnectionID: []byte{9}}
	b := p.Marshal()

	var got Parameters
	err := got.Unmarshal(b, true)
	require.NoError(t, err)
	require.NotNil(t, got.PreferredAddress)
	assert.EqualValues(t, 443, got.PreferredAddress.IPv4Port)
}

func TestConfigSetDefaults(t *testing.T) {
	var c Config
	c.setDefaults()
	assert.EqualValues(t, Version, c.Version)
	assert.EqualValues(t, defaultAckDelayExponent, c.Params.AckDelayExponent)
}
