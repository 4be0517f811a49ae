package quic

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goburrow/quic/transport"
)

// remoteConn must satisfy Conn for endpoint.dispatch to hand it to a Handler.
var _ Conn = (*remoteConn)(nil)

func TestEventConnConstantsDoNotCollideWithStreamEvents(t *testing.T) {
	assert.NotEqual(t, transport.EventStream, EventConnAccept)
	assert.NotEqual(t, transport.EventStreamComplete, EventConnAccept)
	assert.NotEqual(t, transport.EventStreamReset, EventConnAccept)
	assert.NotEqual(t, transport.EventStreamStop, EventConnAccept)
	assert.NotEqual(t, EventConnAccept, EventConnClose)
}

func TestNewEndpointHasEmptyConnTable(t *testing.T) {
	e := newEndpoint(nil, "test")
	assert.NotNil(t, e.config)
	assert.Empty(t, e.conns)
	assert.Nil(t, e.localAddr())
}

func TestPreferredNetAddrPrefersIPv4(t *testing.T) {
	pa := &transport.PreferredAddress{
		IPv4:     [4]byte{127, 0, 0, 1},
		IPv4Port: 4433,
		IPv6:     [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		IPv6Port: 4434,
	}
	addr := preferredNetAddr(pa)
	require.NotNil(t, addr)
	udp, ok := addr.(*net.UDPAddr)
	require.True(t, ok)
	assert.Equal(t, net.IPv4(127, 0, 0, 1).To4(), udp.IP.To4())
	assert.Equal(t, 4433, udp.Port)
}

func TestPreferredNetAddrFallsBackToIPv6(t *testing.T) {
	pa := &transport.PreferredAddress{
		IPv6:     [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		IPv6Port: 4434,
	}
	addr := preferredNetAddr(pa)
	require.NotNil(t, addr)
	udp, ok := addr.(*net.UDPAddr)
	require.True(t, ok)
	assert.Equal(t, net.IP(pa.IPv6[:]), udp.IP)
	assert.Equal(t, 4434, udp.Port)
}

func TestPreferredNetAddrNilWhenNoPortSet(t *testing.T) {
	pa := &transport.PreferredAddress{}
	assert.Nil(t, preferredNetAddr(pa))
}

func TestWalkErrorCodeExtractsTransportError(t *testing.T) {
	err := &transport.Error{Code: transport.FlowControlError}
	assert.Equal(t, transport.FlowControlError, walkErrorCode(err))
}

func TestWalkErrorCodeDefaultsToInternalError(t *testing.T) {
	assert.Equal(t, transport.InternalError, walkErrorCode(errPlain{}))
}

type errPlain struct{}

func (errPlain) Error() string { return "plain error" }
