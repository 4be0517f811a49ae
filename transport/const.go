package transport

// Wire-format and sizing constants (spec §4.2, §6).
const (
	// MinInitialPacketSize is the minimum UDP payload size for the
	// datagram carrying a client's first Initial packet, and the first
	// Initial after a Retry (spec §6).
	MinInitialPacketSize = 1200
	// MaxPacketSize is a conservative ceiling on a single QUIC packet,
	// matching the default max_packet_size transport parameter.
	MaxPacketSize = 65527

	retryIntegrityTagLen = 16
	statelessResetTokenLen = 16

	// minPayloadLength is the minimum protected payload size (so the
	// packet number plus sample offsets used for header protection stay
	// inside the packet).
	minPayloadLength = 4

	maxCryptoFrameOverhead = 1 + 8 + 8 // type + offset + length varints (worst case)
	maxStreamFrameOverhead = 1 + 8 + 8 + 8

	// DefaultActiveConnectionIDLimit is used locally when advertising
	// active_connection_id_limit if the application does not configure one.
	DefaultActiveConnectionIDLimit = 2

	// maxStreamsLimit is the largest permitted value of max_streams,
	// in either a transport parameter or a MAX_STREAMS frame (spec §8).
	maxStreamsLimit = uint64(1) << 60
)

// Version is the only QUIC version this module implements (spec §6).
const Version uint32 = 0x00000001

// versionNegotiationReserved is the wire value denoting a Version
// Negotiation packet.
const versionNegotiationReserved uint32 = 0x00000000

// GreaseVersion is offered alongside Version in a Version Negotiation
// packet so clients that only tolerate a single advertised version
// don't ossify around it (RFC 9000 §6.3).
const GreaseVersion uint32 = 0x1a2a3a4a

func versionSupported(v uint32) bool {
	return v == Version
}

// VersionSupported reports whether v is a version this module
// understands, for a socket-owning layer deciding whether an incoming
// long-header packet needs a Version Negotiation reply before any Conn
// exists for it (spec §4.2).
func VersionSupported(v uint32) bool {
	return versionSupported(v)
}

func isReservedGreaseVersion(v uint32) bool {
	return v&0x0f0f0f0f == 0x0a0a0a0a
}
