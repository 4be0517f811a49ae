package transport

import (
	"crypto/tls"
	"fmt"
	"time"
)

// Transport parameter IDs (spec §6 table; RFC 9000 §18.2).
const (
	paramOriginalDestinationConnectionID uint64 = 0x00
	paramMaxIdleTimeout                  uint64 = 0x01
	paramStatelessResetToken             uint64 = 0x02
	paramMaxUDPPayloadSize                uint64 = 0x03
	paramInitialMaxData                  uint64 = 0x04
	paramInitialMaxStreamDataBidiLocal    uint64 = 0x05
	paramInitialMaxStreamDataBidiRemote   uint64 = 0x06
	paramInitialMaxStreamDataUni           uint64 = 0x07
	paramInitialMaxStreamsBidi            uint64 = 0x08
	paramInitialMaxStreamsUni             uint64 = 0x09
	paramAckDelayExponent                uint64 = 0x0a
	paramMaxAckDelay                     uint64 = 0x0b
	paramDisableActiveMigration          uint64 = 0x0c
	paramPreferredAddress                uint64 = 0x0d
	paramActiveConnectionIDLimit         uint64 = 0x0e
	paramInitialSourceConnectionID       uint64 = 0x0f
	paramRetrySourceConnectionID         uint64 = 0x10
)

const (
	defaultAckDelayExponent   = 3
	maxAckDelayExponentLimit  = 20
	defaultMaxAckDelayMicros  = 25000
	maxAckDelayLimitMicros    = (1 << 14) * 1000 // max_ack_delay is sent in milliseconds and must be below 2^14.
)

// PreferredAddress carries the server-only preferred_address transport
// parameter (spec §7 supplemented feature: address migration to a
// second listener advertised at the end of the handshake).
type PreferredAddress struct {
	IPv4         [4]byte
	IPv4Port     uint16
	IPv6         [16]byte
	IPv6Port     uint16
	ConnectionID []byte
	ResetToken   [statelessResetTokenLen]byte
}

func (a *PreferredAddress) empty() bool {
	return a.IPv4Port == 0 && a.IPv6Port == 0
}

// Parameters holds the negotiated QUIC transport parameters for one
// direction (spec §6). The same type is used for both localParams and
// peerParams on a Conn.
type Parameters struct {
	OriginalDestinationCID []byte
	InitialSourceCID       []byte
	RetrySourceCID         []byte
	StatelessResetToken    []byte

	MaxIdleTimeout    time.Duration
	MaxUDPPayloadSize uint64

	InitialMaxData                 uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64

	AckDelayExponent uint64
	MaxAckDelay      time.Duration

	DisableActiveMigration  bool
	ActiveConnectionIDLimit uint64

	PreferredAddress *PreferredAddress
}

// setDefaults fills in the fixed defaults for fields a caller is
// unlikely to set explicitly (spec §6 defaults table).
func (p *Parameters) setDefaults() {
	if p.AckDelayExponent == 0 {
		p.AckDelayExponent = defaultAckDelayExponent
	}
	if p.MaxAckDelay == 0 {
		p.MaxAckDelay = defaultMaxAckDelayMicros * time.Microsecond
	}
	if p.ActiveConnectionIDLimit == 0 {
		p.ActiveConnectionIDLimit = DefaultActiveConnectionIDLimit
	}
}

// Marshal encodes p as the transport_parameters TLS extension payload
// (RFC 9000 §18.2): a sequence of (varint id, varint length, value).
func (p *Parameters) Marshal() []byte {
	var b []byte
	b = appendVarintParam(b, paramInitialSourceConnectionID, p.InitialSourceCID)
	if len(p.OriginalDestinationCID) > 0 {
		b = appendVarintParam(b, paramOriginalDestinationConnectionID, p.OriginalDestinationCID)
	}
	if len(p.RetrySourceCID) > 0 {
		b = appendVarintParam(b, paramRetrySourceConnectionID, p.RetrySourceCID)
	}
	if len(p.StatelessResetToken) > 0 {
		b = appendVarintParam(b, paramStatelessResetToken, p.StatelessResetToken)
	}
	if p.MaxIdleTimeout > 0 {
		b = appendVarintUintParam(b, paramMaxIdleTimeout, uint64(p.MaxIdleTimeout/time.Millisecond))
	}
	if p.MaxUDPPayloadSize > 0 {
		b = appendVarintUintParam(b, paramMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	}
	b = appendVarintUintParam(b, paramInitialMaxData, p.InitialMaxData)
	b = appendVarintUintParam(b, paramInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	b = appendVarintUintParam(b, paramInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	b = appendVarintUintParam(b, paramInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	b = appendVarintUintParam(b, paramInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	b = appendVarintUintParam(b, paramInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	if p.AckDelayExponent != defaultAckDelayExponent {
		b = appendVarintUintParam(b, paramAckDelayExponent, p.AckDelayExponent)
	}
	if p.MaxAckDelay > 0 {
		b = appendVarintUintParam(b, paramMaxAckDelay, uint64(p.MaxAckDelay/time.Millisecond))
	}
	if p.DisableActiveMigration {
		b = appendVarintParam(b, paramDisableActiveMigration, nil)
	}
	if p.ActiveConnectionIDLimit > 0 {
		b = appendVarintUintParam(b, paramActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	}
	if p.PreferredAddress != nil && !p.PreferredAddress.empty() {
		b = appendVarintParam(b, paramPreferredAddress, encodePreferredAddress(p.PreferredAddress))
	}
	return b
}

// Unmarshal decodes a peer's transport_parameters extension payload,
// validating the constraints spec §6 requires (duplicate IDs,
// out-of-range ack_delay_exponent/max_ack_delay, server-only
// parameters sent by a client).
func (p *Parameters) Unmarshal(b []byte, fromServer bool) error {
	p.setDefaults()
	seen := make(map[uint64]bool)
	for len(b) > 0 {
		var id, length uint64
		n := getVarint(b, &id)
		if n == 0 {
			return newError(TransportParameterError, "invalid parameter id")
		}
		b = b[n:]
		n = getVarint(b, &length)
		if n == 0 {
			return newError(TransportParameterError, "invalid parameter length")
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return newError(TransportParameterError, "truncated parameter value")
		}
		value := b[:length]
		b = b[length:]
		if seen[id] {
			return newError(TransportParameterError, fmt.Sprintf("duplicate parameter 0x%x", id))
		}
		seen[id] = true
		if err := p.setParam(id, value, fromServer); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parameters) setParam(id uint64, value []byte, fromServer bool) error {
	switch id {
	case paramOriginalDestinationConnectionID:
		if !fromServer {
			return newError(TransportParameterError, "original_destination_connection_id from client")
		}
		p.OriginalDestinationCID = append([]byte(nil), value...)
	case paramInitialSourceConnectionID:
		p.InitialSourceCID = append([]byte(nil), value...)
	case paramRetrySourceConnectionID:
		if !fromServer {
			return newError(TransportParameterError, "retry_source_connection_id from client")
		}
		p.RetrySourceCID = append([]byte(nil), value...)
	case paramStatelessResetToken:
		if !fromServer {
			return newError(TransportParameterError, "stateless_reset_token from client")
		}
		if len(value) != statelessResetTokenLen {
			return newError(TransportParameterError, "invalid stateless_reset_token length")
		}
		p.StatelessResetToken = append([]byte(nil), value...)
	case paramMaxIdleTimeout:
		v, ok := decodeVarintParam(value)
		if !ok {
			return newError(TransportParameterError, "max_idle_timeout")
		}
		p.MaxIdleTimeout = time.Duration(v) * time.Millisecond
	case paramMaxUDPPayloadSize:
		v, ok := decodeVarintParam(value)
		if !ok || v < 1200 {
			return newError(TransportParameterError, "max_udp_payload_size")
		}
		p.MaxUDPPayloadSize = v
	case paramInitialMaxData:
		v, ok := decodeVarintParam(value)
		if !ok {
			return newError(TransportParameterError, "initial_max_data")
		}
		p.InitialMaxData = v
	case paramInitialMaxStreamDataBidiLocal:
		v, ok := decodeVarintParam(value)
		if !ok {
			return newError(TransportParameterError, "initial_max_stream_data_bidi_local")
		}
		p.InitialMaxStreamDataBidiLocal = v
	case paramInitialMaxStreamDataBidiRemote:
		v, ok := decodeVarintParam(value)
		if !ok {
			return newError(TransportParameterError, "initial_max_stream_data_bidi_remote")
		}
		p.InitialMaxStreamDataBidiRemote = v
	case paramInitialMaxStreamDataUni:
		v, ok := decodeVarintParam(value)
		if !ok {
			return newError(TransportParameterError, "initial_max_stream_data_uni")
		}
		p.InitialMaxStreamDataUni = v
	case paramInitialMaxStreamsBidi:
		v, ok := decodeVarintParam(value)
		if !ok || v > maxStreamsLimit {
			return newError(TransportParameterError, "initial_max_streams_bidi")
		}
		p.InitialMaxStreamsBidi = v
	case paramInitialMaxStreamsUni:
		v, ok := decodeVarintParam(value)
		if !ok || v > maxStreamsLimit {
			return newError(TransportParameterError, "initial_max_streams_uni")
		}
		p.InitialMaxStreamsUni = v
	case paramAckDelayExponent:
		v, ok := decodeVarintParam(value)
		if !ok || v > maxAckDelayExponentLimit {
			return newError(TransportParameterError, "ack_delay_exponent")
		}
		p.AckDelayExponent = v
	case paramMaxAckDelay:
		v, ok := decodeVarintParam(value)
		if !ok || v >= maxAckDelayLimitMicros/1000 {
			return newError(TransportParameterError, "max_ack_delay")
		}
		p.MaxAckDelay = time.Duration(v) * time.Millisecond
	case paramDisableActiveMigration:
		if len(value) != 0 {
			return newError(TransportParameterError, "disable_active_migration")
		}
		p.DisableActiveMigration = true
	case paramActiveConnectionIDLimit:
		v, ok := decodeVarintParam(value)
		if !ok || v < 2 {
			return newError(TransportParameterError, "active_connection_id_limit")
		}
		p.ActiveConnectionIDLimit = v
	case paramPreferredAddress:
		if !fromServer {
			return newError(TransportParameterError, "preferred_address from client")
		}
		pa, err := decodePreferredAddress(value)
		if err != nil {
			return err
		}
		p.PreferredAddress = pa
	default:
		// Unknown parameters are ignored (RFC 9000 §7.4.1 extensibility rule).
	}
	return nil
}

func appendVarintParam(b []byte, id uint64, value []byte) []byte {
	b = appendVarint(b, id)
	b = appendVarint(b, uint64(len(value)))
	return append(b, value...)
}

func appendVarintUintParam(b []byte, id, value uint64) []byte {
	var tmp [8]byte
	n := putVarint(tmp[:], value)
	return appendVarintParam(b, id, tmp[:n])
}

func appendVarint(b []byte, v uint64) []byte {
	var tmp [8]byte
	n := putVarint(tmp[:], v)
	return append(b, tmp[:n]...)
}

func decodeVarintParam(value []byte) (uint64, bool) {
	var v uint64
	n := getVarint(value, &v)
	if n == 0 || n != len(value) {
		return 0, false
	}
	return v, true
}

func encodePreferredAddress(a *PreferredAddress) []byte {
	b := make([]byte, 0, 4+2+16+2+1+len(a.ConnectionID)+statelessResetTokenLen)
	b = append(b, a.IPv4[:]...)
	b = append(b, byte(a.IPv4Port>>8), byte(a.IPv4Port))
	b = append(b, a.IPv6[:]...)
	b = append(b, byte(a.IPv6Port>>8), byte(a.IPv6Port))
	b = append(b, byte(len(a.ConnectionID)))
	b = append(b, a.ConnectionID...)
	b = append(b, a.ResetToken[:]...)
	return b
}

func decodePreferredAddress(b []byte) (*PreferredAddress, error) {
	if len(b) < 4+2+16+2+1 {
		return nil, newError(TransportParameterError, "preferred_address too short")
	}
	a := &PreferredAddress{}
	copy(a.IPv4[:], b[0:4])
	a.IPv4Port = uint16(b[4])<<8 | uint16(b[5])
	copy(a.IPv6[:], b[6:22])
	a.IPv6Port = uint16(b[22])<<8 | uint16(b[23])
	off := 24
	cidLen := int(b[off])
	off++
	if len(b) < off+cidLen+statelessResetTokenLen {
		return nil, newError(TransportParameterError, "preferred_address cid/token truncated")
	}
	a.ConnectionID = append([]byte(nil), b[off:off+cidLen]...)
	off += cidLen
	copy(a.ResetToken[:], b[off:off+statelessResetTokenLen])
	return a, nil
}

// EarlyTransportParams is a client's remembered subset of a prior
// connection's peer transport parameters, supplied to size 0-RTT early
// data before the real parameters are confirmed by the handshake (spec
// §4.9). The parameters a client must not carry over to a new
// connection attempt - original_destination_connection_id,
// preferred_address, stateless_reset_token, ack_delay_exponent and
// active_connection_id_limit - are deliberately not part of this type.
// Pairs with the TLS session ticket cached by tls.Config's own
// ClientSessionCache; this package does not persist either on its own.
type EarlyTransportParams struct {
	InitialMaxData                 uint64
	InitialMaxStreamDataBidiLocal   uint64
	InitialMaxStreamDataBidiRemote  uint64
	InitialMaxStreamDataUni         uint64
	InitialMaxStreamsBidi           uint64
	InitialMaxStreamsUni            uint64
}

// Config bundles version, local transport parameters and the
// standard-library QUIC-TLS configuration used for one connection's
// handshake (spec §6).
type Config struct {
	Version uint32
	Params  Parameters
	TLS     *tls.Config

	// Early carries remembered peer limits from a previous connection to
	// the same server, enabling the client to send 0-RTT data before
	// this handshake completes. Left nil to disable 0-RTT.
	Early *EarlyTransportParams

	// Token is a value from a prior NEW_TOKEN frame (EventNewToken),
	// presented in this connection's first Initial packet so the server
	// can skip the address-validation round trip (spec §4.10).
	// Client-only; ignored when accepting.
	Token []byte

	// StatelessResetKey is the static secret every connection accepted
	// or dialed through this Config derives its stateless reset tokens
	// from (spec §4.10). It must be the same value across every Conn
	// sharing a socket and stable for as long as the socket is bound, or
	// a stateless reset computed after a Conn's state is gone will not
	// match the token that Conn originally advertised. Left empty, each
	// Conn falls back to a random per-connection key, which works for
	// detecting a peer's reset but cannot itself produce one that
	// remains valid once this Conn is torn down.
	StatelessResetKey []byte

	// PreferredAddress, set on a server Config, advertises a second
	// routable address to the client via the preferred_address
	// transport parameter once the handshake completes (spec §4.8).
	// Only the address/port fields are read; ConnectionID and
	// ResetToken are generated per connection and must be left zero.
	PreferredAddress *PreferredAddress
}

func (c *Config) setDefaults() {
	if c.Version == 0 {
		c.Version = Version
	}
	c.Params.setDefaults()
}
